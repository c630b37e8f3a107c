package buffer

import (
	"errors"
	"testing"
)

func twoChannel(t *testing.T) *Buffer {
	t.Helper()
	b, err := New(250, []string{"Fp1", "Fp2"}, [][]float64{
		{0, 1, 2, 3},
		{4, 5, 6, 7},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestNew_Valid(t *testing.T) {
	b := twoChannel(t)
	if b.NumChannels() != 2 {
		t.Fatalf("channels=%d, want 2", b.NumChannels())
	}
	if b.Len() != 4 {
		t.Fatalf("len=%d, want 4", b.Len())
	}
	if b.SampleRate() != 250 {
		t.Fatalf("rate=%f, want 250", b.SampleRate())
	}
}

func TestNew_Invalid(t *testing.T) {
	cases := []struct {
		name string
		rate float64
		ids  []string
		data [][]float64
		want error
	}{
		{"zero rate", 0, []string{"a"}, [][]float64{{1}}, ErrInvalidRate},
		{"no channels", 250, nil, nil, ErrEmpty},
		{"no samples", 250, []string{"a"}, [][]float64{{}}, ErrNoSamples},
		{"ragged", 250, []string{"a", "b"}, [][]float64{{1, 2}, {1}}, ErrRaggedChannels},
		{"duplicate id", 250, []string{"a", "a"}, [][]float64{{1}, {2}}, ErrDuplicateID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.rate, tc.ids, tc.data)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
		})
	}
}

func TestChannel_Lookup(t *testing.T) {
	b := twoChannel(t)
	ch, err := b.Channel("Fp2")
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if ch[0] != 4 {
		t.Fatalf("Fp2[0]=%v, want 4", ch[0])
	}
	if _, err := b.Channel("Cz"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("err=%v, want ErrUnknownChannel", err)
	}
}

func TestCopy_Independent(t *testing.T) {
	b := twoChannel(t)
	c := b.Copy()
	c.ChannelAt(0)[0] = 99
	if b.ChannelAt(0)[0] == 99 {
		t.Fatal("Copy shares backing storage with original")
	}
}

func TestEpoch_ViewAndMaterialize(t *testing.T) {
	b := twoChannel(t)
	e, err := b.Epoch("baseline", 1, 3)
	if err != nil {
		t.Fatalf("Epoch: %v", err)
	}
	if e.Len() != 2 {
		t.Fatalf("len=%d, want 2", e.Len())
	}
	ch, err := e.Channel("Fp1")
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if ch[0] != 1 || ch[1] != 2 {
		t.Fatalf("view=%v, want [1 2]", ch)
	}

	m := e.Materialize()
	if m.Len() != 2 || m.NumChannels() != 2 {
		t.Fatalf("materialized %dx%d, want 2x2", m.NumChannels(), m.Len())
	}
	m.ChannelAt(0)[0] = 99
	if b.ChannelAt(0)[1] == 99 {
		t.Fatal("Materialize shares backing storage with parent")
	}
}

func TestEpoch_InvalidRange(t *testing.T) {
	b := twoChannel(t)
	for _, r := range [][2]int{{-1, 2}, {0, 5}, {2, 2}, {3, 1}} {
		if _, err := b.Epoch("x", r[0], r[1]); !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("range %v: err=%v, want ErrInvalidInterval", r, err)
		}
	}
}

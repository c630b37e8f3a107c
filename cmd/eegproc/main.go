// Command eegproc runs the processing engines over CSV sample files.
//
// Input files carry one channel per column with a header row of channel
// ids; the sampling rate is supplied with --rate.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-eeg/eeg/buffer"
	"github.com/cwbudde/algo-eeg/eeg/connectivity"
	"github.com/cwbudde/algo-eeg/eeg/detect"
	"github.com/cwbudde/algo-eeg/eeg/filter"
	"github.com/cwbudde/algo-eeg/eeg/pipeline"
	"github.com/cwbudde/algo-eeg/eeg/spectral"
	"github.com/cwbudde/algo-eeg/eeg/window"
	"github.com/cwbudde/algo-eeg/internal/csvio"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	rate    float64
	workers int
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "eegproc",
		Short:         "Filter, analyze, and detect events in multi-channel sample files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().Float64Var(&flags.rate, "rate", 250, "sampling rate in Hz")
	cmd.PersistentFlags().IntVar(&flags.workers, "workers", 0, "worker limit (0 = all cores)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newFilterCmd(flags),
		newPSDCmd(flags),
		newDetectCmd(flags),
		newConnectivityCmd(flags),
	)
	return cmd
}

func (f *rootFlags) pipeline() (*pipeline.Pipeline, func(), error) {
	log := zap.NewNop()
	cleanup := func() {}
	if f.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, nil, fmt.Errorf("logger: %w", err)
		}
		log = l
		cleanup = func() { _ = l.Sync() }
	}
	return pipeline.New(pipeline.WithLogger(log), pipeline.WithWorkers(f.workers)), cleanup, nil
}

func (f *rootFlags) readInput(path string) (*buffer.Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return csvio.Read(file, f.rate)
}

func newFilterCmd(flags *rootFlags) *cobra.Command {
	var (
		family   string
		band     string
		order    int
		cutoff   float64
		cutoff2  float64
		ripple   float64
		zeroPh   bool
		output   string
		channels []string
	)

	cmd := &cobra.Command{
		Use:   "filter <input.csv>",
		Short: "Design a filter and apply it to the input channels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := flags.readInput(args[0])
			if err != nil {
				return err
			}
			p, cleanup, err := flags.pipeline()
			if err != nil {
				return err
			}
			defer cleanup()

			spec, err := parseSpec(family, band, order, cutoff, cutoff2, ripple)
			if err != nil {
				return err
			}

			opts := []filter.ApplyOption{}
			if zeroPh {
				opts = append(opts, filter.WithMode(filter.ZeroPhase))
			}
			if len(channels) > 0 {
				opts = append(opts, filter.WithChannels(channels...))
			}

			res, err := p.Filter(cmd.Context(), buf, spec, opts...)
			if err != nil {
				return err
			}
			return writeOutput(output, res.Buffer)
		},
	}

	cmd.Flags().StringVar(&family, "family", "butterworth", "filter family: butterworth, chebyshev, fir")
	cmd.Flags().StringVar(&band, "band", "lowpass", "band type: lowpass, highpass, bandpass, bandstop")
	cmd.Flags().IntVar(&order, "order", 4, "filter order")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 30, "cutoff frequency in Hz")
	cmd.Flags().Float64Var(&cutoff2, "cutoff2", 0, "upper cutoff for bandpass/bandstop")
	cmd.Flags().Float64Var(&ripple, "ripple", 0, "passband ripple in dB (chebyshev)")
	cmd.Flags().BoolVar(&zeroPh, "zero-phase", false, "forward-backward filtering")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output CSV path (- for stdout)")
	cmd.Flags().StringSliceVar(&channels, "channels", nil, "restrict to these channels")
	return cmd
}

func newPSDCmd(flags *rootFlags) *cobra.Command {
	var (
		segLen  int
		overlap float64
		win     string
	)

	cmd := &cobra.Command{
		Use:   "psd <input.csv>",
		Short: "Estimate per-channel power spectral densities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := flags.readInput(args[0])
			if err != nil {
				return err
			}
			p, cleanup, err := flags.pipeline()
			if err != nil {
				return err
			}
			defer cleanup()

			wt, err := parseWindow(win)
			if err != nil {
				return err
			}
			est, err := p.PSD(cmd.Context(), buf, spectral.SegmentConfig{
				Window:          wt,
				SegmentLen:      segLen,
				OverlapFraction: overlap,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "freq_hz,%s\n", strings.Join(est.ChannelIDs, ","))
			for i, f := range est.Freqs {
				fmt.Fprintf(out, "%g", f)
				for ch := range est.Power {
					fmt.Fprintf(out, ",%g", est.Power[ch][i])
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&segLen, "segment", 256, "Welch segment length in samples")
	cmd.Flags().Float64Var(&overlap, "overlap", 0.5, "segment overlap fraction [0, 1)")
	cmd.Flags().StringVar(&win, "window", "hann", "window: rect, hann, hamming, blackman")
	return cmd
}

func newDetectCmd(flags *rootFlags) *cobra.Command {
	var (
		stat       string
		windowLen  int
		high, low  float64
		minDur     int
		refractory int
	)

	cmd := &cobra.Command{
		Use:   "detect <input.csv>",
		Short: "Detect threshold events per channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := flags.readInput(args[0])
			if err != nil {
				return err
			}
			p, cleanup, err := flags.pipeline()
			if err != nil {
				return err
			}
			defer cleanup()

			st := detect.StatRectifiedAmplitude
			if stat == "energy" {
				st = detect.StatEnergy
			} else if stat != "amplitude" {
				return fmt.Errorf("unknown statistic %q", stat)
			}

			events, err := p.Detect(cmd.Context(), buf, detect.Config{
				Statistic:     st,
				WindowLen:     windowLen,
				ThresholdHigh: high,
				ThresholdLow:  low,
				MinDuration:   minDur,
				Refractory:    refractory,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "channel,start,end,type,score")
			for _, ev := range events {
				fmt.Fprintf(out, "%s,%d,%d,%s,%g\n", ev.Channel, ev.Start, ev.End, ev.Type, ev.Score)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stat, "statistic", "amplitude", "statistic: amplitude, energy")
	cmd.Flags().IntVar(&windowLen, "window", 8, "sliding window length in samples")
	cmd.Flags().Float64Var(&high, "high", 0, "entry threshold")
	cmd.Flags().Float64Var(&low, "low", 0, "sustain/exit threshold")
	cmd.Flags().IntVar(&minDur, "min-duration", 1, "minimum event duration in samples")
	cmd.Flags().IntVar(&refractory, "refractory", 0, "refractory span in samples")
	_ = cmd.MarkFlagRequired("high")
	_ = cmd.MarkFlagRequired("low")
	return cmd
}

func newConnectivityCmd(flags *rootFlags) *cobra.Command {
	var (
		measure string
		bandLo  float64
		bandHi  float64
		segLen  int
	)

	cmd := &cobra.Command{
		Use:   "connectivity <input.csv>",
		Short: "Compute a pairwise channel coupling matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := flags.readInput(args[0])
			if err != nil {
				return err
			}
			p, cleanup, err := flags.pipeline()
			if err != nil {
				return err
			}
			defer cleanup()

			var m connectivity.Measure
			switch measure {
			case "coherence":
				m = connectivity.MeasureCoherence
			case "correlation":
				m = connectivity.MeasureCorrelation
			case "plv":
				m = connectivity.MeasurePhaseLocking
			default:
				return fmt.Errorf("unknown measure %q", measure)
			}

			opts := []connectivity.Option{
				connectivity.WithSegmentConfig(spectral.SegmentConfig{
					Window:          window.TypeHann,
					SegmentLen:      segLen,
					OverlapFraction: 0.5,
				}),
			}
			if bandLo != 0 || bandHi != 0 {
				opts = append(opts, connectivity.WithBand(bandLo, bandHi))
			}

			matrix, err := p.Connectivity(cmd.Context(), buf, m, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, ",%s\n", strings.Join(matrix.ChannelIDs, ","))
			for i, id := range matrix.ChannelIDs {
				fmt.Fprintf(out, "%s", id)
				for j := range matrix.ChannelIDs {
					fmt.Fprintf(out, ",%.6f", matrix.At(i, j))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&measure, "measure", "coherence", "measure: coherence, correlation, plv")
	cmd.Flags().Float64Var(&bandLo, "band-low", 0, "band lower edge in Hz (0,0 = full spectrum)")
	cmd.Flags().Float64Var(&bandHi, "band-high", 0, "band upper edge in Hz")
	cmd.Flags().IntVar(&segLen, "segment", 256, "Welch segment length in samples")
	return cmd
}

func parseSpec(family, band string, order int, cutoff, cutoff2, ripple float64) (filter.Spec, error) {
	spec := filter.Spec{
		Order:    order,
		Cutoff:   cutoff,
		Cutoff2:  cutoff2,
		RippleDB: ripple,
	}

	switch family {
	case "butterworth":
		spec.Family = filter.Butterworth
	case "chebyshev":
		spec.Family = filter.Chebyshev
	case "fir":
		spec.Family = filter.FIR
	default:
		return spec, fmt.Errorf("unknown family %q", family)
	}

	switch band {
	case "lowpass":
		spec.Band = filter.Lowpass
	case "highpass":
		spec.Band = filter.Highpass
	case "bandpass":
		spec.Band = filter.Bandpass
	case "bandstop":
		spec.Band = filter.Bandstop
	default:
		return spec, fmt.Errorf("unknown band %q", band)
	}
	return spec, nil
}

func parseWindow(name string) (window.Type, error) {
	switch name {
	case "rect":
		return window.TypeRectangular, nil
	case "hann":
		return window.TypeHann, nil
	case "hamming":
		return window.TypeHamming, nil
	case "blackman":
		return window.TypeBlackman, nil
	default:
		return 0, fmt.Errorf("unknown window %q", name)
	}
}

func writeOutput(path string, buf *buffer.Buffer) error {
	if path == "-" || path == "" {
		return csvio.Write(os.Stdout, buf)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvio.Write(file, buf); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

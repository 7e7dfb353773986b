package main

import (
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"dddw/blockdev"
	"dddw/config"
	"dddw/imaging"
	"dddw/retrodfrg"
)

var errNotElevated = errors.New("reading raw devices needs administrator or root privileges")

type dumpOptions struct {
	input, output string
	chunkSize     string
	tui           bool
	noProgress    bool
	skipElevation bool
}

func (a *app) dumpCmd() *cobra.Command {
	var o dumpOptions
	cmd := &cobra.Command{
		Use:   "dump --inputfile <device> --outputfile <image>",
		Short: "Copy a disk or volume into <image>.img",
		Long: "Copy a disk or volume byte for byte into <outputfile>.img. The input is a\n" +
			"PhysicalDriveN or HarddiskVolumeN reference or a device or file path.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.applyDumpFlags(cmd, o); err != nil {
				return err
			}
			return a.dump(o)
		},
	}
	cmd.Flags().StringVarP(&o.input, "inputfile", "i", "", `device to read (e.g. \\.\PhysicalDrive1, HarddiskVolume3, /dev/sdb)`)
	cmd.Flags().StringVarP(&o.output, "outputfile", "o", "", "image path without the .img extension")
	cmd.Flags().StringVar(&o.chunkSize, "chunk-size", "", "bytes per read, multiple of 512 (e.g. 1m, 64k)")
	cmd.Flags().BoolVar(&o.tui, "tui", false, "full-screen progress display")
	cmd.Flags().BoolVar(&o.noProgress, "no-progress", false, "no progress output")
	cmd.Flags().BoolVar(&o.skipElevation, "skip-elevation-check", false, "do not require administrator or root")
	_ = cmd.MarkFlagRequired("inputfile")
	_ = cmd.MarkFlagRequired("outputfile")
	return cmd
}

func (a *app) applyDumpFlags(cmd *cobra.Command, o dumpOptions) error {
	if cmd.Flags().Changed("chunk-size") {
		n, err := config.ParseChunkSize(o.chunkSize)
		if err != nil {
			return errors.Wrap(err, "--chunk-size")
		}
		a.cfg.ChunkSize = n
	}
	switch {
	case o.noProgress:
		a.cfg.Progress = config.ProgressNone
	case o.tui:
		a.cfg.Progress = config.ProgressTUI
	}
	return a.cfg.Validate()
}

func (a *app) dump(o dumpOptions) error {
	if o.skipElevation {
		a.log.Warn().Msg("elevation check skipped")
	} else {
		ok, err := a.isElevated()
		if err != nil {
			return errors.Wrap(err, "check privileges")
		}
		if !ok {
			return errNotElevated
		}
	}

	dev, err := a.opener(a.log).OpenInput(o.input)
	if err != nil {
		return err
	}
	defer dev.Close()

	out := o.output + ".img"
	a.log.Info().Str("device", dev.Name).Str("size", imaging.HumanBytes(dev.Size)).Str("output", out).Msg("dumping")

	rep, done, err := a.reporter(dev, out)
	if err != nil {
		return err
	}
	n, err := imaging.CopyToFile(dev, out, dev.Size, a.cfg.ChunkSize, rep)
	done()
	if err != nil {
		return errors.Wrapf(err, "dump %s to %s", dev.Name, out)
	}

	color.New(color.FgGreen).Fprintf(a.stdout, "Image written: %s (%s)\n", out, imaging.HumanBytes(n))
	return nil
}

// reporter builds the progress display for the configured mode. The returned
// func tears it down.
func (a *app) reporter(dev *blockdev.OpenDevice, out string) (imaging.Reporter, func(), error) {
	switch a.cfg.Progress {
	case config.ProgressNone:
		return imaging.NopReporter{}, func() {}, nil
	case config.ProgressTUI:
		ui, err := a.newUI()
		if err != nil {
			return nil, nil, errors.Wrap(err, "start terminal UI")
		}
		finished := make(chan struct{})
		go func() {
			select {
			case <-ui.Stopped():
				// the copy cannot be cancelled, so leave now
				ui.Close()
				a.log.Error().Str("output", out).Msg("aborted, image is incomplete")
				a.exit(1)
			case <-finished:
			}
		}()
		return retrodfrg.NewReporter(ui, dev.Name, a.cfg.ChunkSize), func() {
			close(finished)
			ui.Close()
		}, nil
	}

	if a.cfg.Progress == config.ProgressBar && a.stderrTTY {
		return imaging.NewBarReporter(a.stderr, "dumping"), func() {}, nil
	}
	every := dev.Size / 20
	if every < uint64(a.cfg.ChunkSize) {
		every = uint64(a.cfg.ChunkSize)
	}
	return &imaging.LogReporter{Log: a.log, Every: every}, func() {}, nil
}

package main

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dddw/blockdev"
	"dddw/imaging"
)

const rowFormat = "  %-28s  %-16s  %-13s  %-8s  %-11s  %-9s  %s\n"

func (a *app) listDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-devices",
		Short: "List disks and volumes (read-only)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			infos, err := a.enumerator(a.log).ListDevices()
			if err != nil {
				return err
			}
			printDevices(a.stdout, infos)
			return nil
		},
	}
}

func printDevices(w io.Writer, infos []blockdev.DeviceInfo) {
	heading := color.New(color.Bold)
	warn := color.New(color.FgYellow)

	fmt.Fprintf(w, "OS: %s\n\n", runtime.GOOS)
	heading.Fprintf(w, rowFormat, "Path", "Name", "Class", "Number", "Size", "Media", "Mount points")
	if len(infos) == 0 {
		fmt.Fprintln(w, "  <none detected>")
		return
	}
	partial := 0
	for _, d := range infos {
		fmt.Fprintf(w, rowFormat,
			d.Path, d.Name, d.Class, optional(d.DeviceNumber, strconv.FormatUint),
			optional(d.Size, func(v uint64, _ int) string { return imaging.HumanBytes(v) }),
			orDash(d.Media), orDash(strings.Join(d.MountPoints, ", ")))
		if d.Err != nil {
			partial++
		}
	}
	if partial > 0 {
		fmt.Fprintln(w)
		warn.Fprintf(w, "%d device(s) could not be fully queried; rerun with -L debug for details\n", partial)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	switch runtime.GOOS {
	case "windows":
		fmt.Fprintln(w, `  - Pass PhysicalDriveN or HarddiskVolumeN to dump, e.g. \\.\PhysicalDrive1.`)
	default:
		fmt.Fprintln(w, "  - Pass the device path to dump, e.g. /dev/sdb.")
	}
}

func optional(v *uint64, format func(uint64, int) string) string {
	if v == nil {
		return "-"
	}
	return format(*v, 10)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-descriptors/engine/loader"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/resource_set"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
	workers  int
	frames   int
}

func newRootCommand(logger *logrus.Logger) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "oxylayout",
		Short:         "Inspect resource set declaration files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(level)
			logger.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "logrus level")
	root.PersistentFlags().IntVar(&opts.workers, "workers", 4, "files decoded concurrently")
	root.PersistentFlags().IntVar(&opts.frames, "frames", 0, "frames in flight, overriding the files")

	root.AddCommand(newDescribeCommand(logger, opts), newVerifyCommand(logger, opts))
	return root
}

func newDescribeCommand(logger *logrus.Logger, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe FILE...",
		Short: "Print buffer layouts, bindings and pool sizes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := loadAll(logger, opts, args)
			for i, f := range files {
				if f == nil {
					continue
				}
				if derr := describe(cmd.OutOrStdout(), args[i], f, opts.frames); derr != nil {
					err = errors.Join(err, derr)
				}
			}
			return err
		},
	}
}

func newVerifyCommand(logger *logrus.Logger, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE...",
		Short: "Finalize every declared set on the host backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := loadAll(logger, opts, args)
			backend := renderer.NewHostRendererBackend(renderer.WithLogger(logger))
			defer backend.Release()

			for i, f := range files {
				if f == nil {
					continue
				}
				var setOpts []resource_set.ResourceSetBuilderOption
				if opts.frames > 0 {
					setOpts = append(setOpts, resource_set.WithFramesInFlight(opts.frames))
				}
				setOpts = append(setOpts, resource_set.WithLogger(logger))

				in, ierr := f.Instantiate(backend, setOpts...)
				if ierr != nil {
					logger.WithError(ierr).WithField("file", args[i]).Error("[oxylayout] verify failed")
					err = errors.Join(err, ierr)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s\t%s\t%d frames\n", args[i], in.Set.Label(), in.Set.FramesInFlight())
				in.Release()
			}
			return err
		},
	}
}

func loadAll(logger *logrus.Logger, opts *rootOptions, paths []string) ([]*loader.SetFile, error) {
	l := loader.NewLoader(loader.WithLogger(logger), loader.WithWorkers(opts.workers))
	files, err := l.LoadAll(paths...)
	if err != nil {
		logger.WithError(err).Error("[oxylayout] failed to load declarations")
	}
	return files, err
}

// describe writes the report for one file.
func describe(w io.Writer, path string, f *loader.SetFile, framesOverride int) error {
	frames := f.FramesInFlight
	if framesOverride > 0 {
		frames = framesOverride
	}
	if frames == 0 {
		frames = 2
	}

	layouts, err := f.Layouts()
	if err != nil {
		return err
	}
	decls, err := f.Declarations()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "# %s (%s), %d frames in flight\n", f.Label, path, frames)
	for i, layout := range layouts {
		fmt.Fprintf(w, "\n## buffer %d %q, %d bytes\n", i, f.Buffers[i].Name, layout.Size())
		fmt.Fprint(w, layout.String())
	}

	fmt.Fprintln(w, "\n## bindings")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "binding\tkind\tdescriptor\tcount")
	for _, b := range resource_set.AssignBindings(decls) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", b.Index, b.Kind, b.DescriptorType, b.Count)
	}
	tw.Flush()

	fmt.Fprintln(w, "\n## pool")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "descriptor\tcount")
	for _, size := range resource_set.PoolSizesFor(decls, frames) {
		fmt.Fprintf(tw, "%s\t%d\n", size.Type, size.Count)
	}
	fmt.Fprintf(tw, "max sets\t%d\n", frames)
	tw.Flush()
	fmt.Fprintln(w)
	return nil
}

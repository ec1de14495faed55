// Command gokasp grounds and solves logic programs, printing each answer
// set as it is found. Several input files are solved concurrently, their
// output merged into a single stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitrdm/gokasp/internal/parallel"
	"github.com/gitrdm/gokasp/pkg/asp"
)

type options struct {
	models  int64
	threads int
	seed    int64
	jobs    int
	stats   bool
	verbose bool
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:   "gokasp [flags] FILE...",
		Short: "Ground and solve logic programs",
		Long: `gokasp reads logic programs, grounds them, and enumerates their
answer sets. With more than one input file each program is solved as an
independent job; model output from concurrent jobs is tagged with the
source file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
		SilenceUsage: true,
	}

	root.Flags().Int64VarP(&opts.models, "models", "n", 1, "number of models to compute per program (0 for all)")
	root.Flags().IntVarP(&opts.threads, "threads", "t", 1, "solving threads per program")
	root.Flags().Int64Var(&opts.seed, "seed", 0, "base random seed for search diversification")
	root.Flags().IntVarP(&opts.jobs, "jobs", "j", 1, "programs solved concurrently")
	root.Flags().BoolVar(&opts.stats, "stats", false, "print search statistics per program")
	root.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose diagnostics")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, files []string) error {
	log := logrus.New()
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	mod := asp.NewModule(log)
	defer mod.Close()

	pool := parallel.NewPool(opts.jobs)
	defer pool.Shutdown()
	merger := parallel.NewMerger()

	type outcome struct {
		file   string
		result asp.SolveResult
		err    error
	}
	outcomes := make(chan outcome, len(files))

	for _, file := range files {
		file := file
		stream := make(chan parallel.Message)
		merger.AddStream(stream)
		err := pool.Submit(ctx, func() {
			defer close(stream)
			r, err := solveFile(ctx, mod, log, opts, file, stream)
			outcomes <- outcome{file: file, result: r, err: err}
		})
		if err != nil {
			close(stream)
			outcomes <- outcome{file: file, err: err}
		}
	}

	go func() {
		for i := 0; i < len(files); i++ {
			<-outcomes
		}
		merger.Close()
	}()

	tag := len(files) > 1
	for msg := range merger.Output() {
		if tag {
			fmt.Printf("[%s] %s\n", msg.Source, msg.Text)
		} else {
			fmt.Println(msg.Text)
		}
	}
	return ctx.Err()
}

func solveFile(ctx context.Context, mod *asp.Module, log *logrus.Logger, opts *options, file string, out chan<- parallel.Message) (asp.SolveResult, error) {
	emit := func(format string, args ...interface{}) {
		select {
		case out <- parallel.Message{Source: file, Text: fmt.Sprintf(format, args...)}:
		case <-ctx.Done():
		}
	}

	args := []string{
		fmt.Sprintf("--threads=%d", opts.threads),
		fmt.Sprintf("--seed=%d", opts.seed),
		fmt.Sprintf("%d", opts.models),
	}
	ctl, err := mod.NewControl(args, asp.DefaultLogger(log), 0)
	if err != nil {
		emit("error: %v", err)
		return 0, err
	}
	defer ctl.Close()

	if err := ctl.Load(file); err != nil {
		emit("error: %v", err)
		return 0, err
	}
	if err := ctl.Ground([]asp.Part{{Name: "base"}}, nil); err != nil {
		emit("error: %v", err)
		return 0, err
	}

	result, err := ctl.Solve(ctx, nil, func(m *asp.Model) (bool, error) {
		n, err := m.Number()
		if err != nil {
			return false, err
		}
		atoms, err := m.Atoms(asp.ShowShown)
		if err != nil {
			return false, err
		}
		emit("Answer: %d", n)
		emit("%s", renderAtoms(atoms))
		return true, nil
	})
	if err != nil {
		emit("error: %v", err)
		return 0, err
	}

	emit("%s", result)
	if opts.stats {
		st := ctl.Statistics()
		emit("%s", st.String())
	}
	return result, nil
}

func renderAtoms(atoms []asp.Symbol) string {
	var b strings.Builder
	for i, a := range atoms {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a.String())
	}
	return b.String()
}

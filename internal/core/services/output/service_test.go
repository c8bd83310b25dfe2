package output_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"teeout/internal/adapters/filesystem"
	logadapter "teeout/internal/adapters/logger"
	"teeout/internal/core/domain"
	"teeout/internal/core/ports"
	"teeout/internal/core/services/output"
	"teeout/internal/tee"
)

type failingOpener struct {
	err error
}

func (o failingOpener) Create(context.Context, string) (ports.FileSink, error) {
	return nil, o.err
}

// toggleOpener fails while fail is set and otherwise delegates to next.
type toggleOpener struct {
	fail bool
	next ports.FileOpener
}

func (o *toggleOpener) Create(ctx context.Context, path string) (ports.FileSink, error) {
	if o.fail {
		return nil, errors.New("disk unavailable")
	}
	return o.next.Create(ctx, path)
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		dir     string
		console *bytes.Buffer
		errCons *bytes.Buffer
		logger  ports.Logger
		service *output.Service
	)

	readFile := func(name string) string {
		content, err := os.ReadFile(filepath.Join(dir, name))
		Expect(err).ToNot(HaveOccurred())
		return string(content)
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		console = &bytes.Buffer{}
		errCons = &bytes.Buffer{}
		logger = logadapter.NewSlogAdapter(slog.New(slog.NewJSONHandler(io.Discard, nil)))
		service = output.NewService(logger, filesystem.NewOpener(logger, false), console, errCons)
	})

	AfterEach(func() {
		service.Shutdown(ctx)
	})

	It("starts bound to the consoles only", func() {
		service.Stdout().WriteString("out")
		service.Stderr().WriteString("err")

		Expect(console.String()).To(Equal("out"))
		Expect(errCons.String()).To(Equal("err"))
		Expect(service.Status()).To(Equal([]domain.StreamStatus{
			{Name: domain.Stderr},
			{Name: domain.Stdout},
		}))
	})

	It("retargets to console plus file, then to a different file", func() {
		stdout := service.Stdout()
		f := filepath.Join(dir, "f.txt")
		g := filepath.Join(dir, "g.txt")

		Expect(service.SetStdoutFile(ctx, f)).To(Succeed())
		_, err := stdout.WriteString("line1\n")
		Expect(err).ToNot(HaveOccurred())
		Expect(readFile("f.txt")).To(Equal("line1\n"))

		Expect(service.SetStdoutFile(ctx, g)).To(Succeed())
		_, err = stdout.WriteString("line2\n")
		Expect(err).ToNot(HaveOccurred())

		Expect(readFile("f.txt")).To(Equal("line1\n"))
		Expect(readFile("g.txt")).To(Equal("line2\n"))
		Expect(console.String()).To(Equal("line1\nline2\n"))
		Expect(service.Stdout()).To(BeIdenticalTo(stdout))
	})

	It("keeps only the latest file bound", func() {
		Expect(service.SetStderrFile(ctx, filepath.Join(dir, "a.txt"))).To(Succeed())
		Expect(service.SetStderrFile(ctx, filepath.Join(dir, "b.txt"))).To(Succeed())

		_, file := service.Stderr().Sinks()
		Expect(file.(ports.FileSink).Name()).To(Equal(filepath.Join(dir, "b.txt")))

		statuses := service.Status()
		Expect(statuses[0].Name).To(Equal(domain.Stderr))
		Expect(statuses[0].File).To(Equal(filepath.Join(dir, "b.txt")))
	})

	It("truncates a file when retargeting to it again", func() {
		path := filepath.Join(dir, "same.txt")
		Expect(service.SetStdoutFile(ctx, path)).To(Succeed())
		service.Stdout().WriteString("first run\n")

		Expect(service.SetStdoutFile(ctx, path)).To(Succeed())
		service.Stdout().WriteString("second\n")
		Expect(readFile("same.txt")).To(Equal("second\n"))
	})

	It("flushes a stream retargeted to /dev/null", func() {
		Expect(service.SetStdoutFile(ctx, os.DevNull)).To(Succeed())
		_, err := service.Stdout().WriteString("x")
		Expect(err).ToNot(HaveOccurred())

		Expect(service.Stdout().Flush()).To(Succeed())
		Expect(service.Flush(ctx, domain.Stdout)).To(Succeed())
		Expect(service.Shutdown(ctx)).To(Succeed())
	})

	It("clears the failure state once a retarget succeeds", func() {
		opener := &toggleOpener{fail: true, next: filesystem.NewOpener(logger, false)}
		service = output.NewService(logger, opener, console, errCons)

		Expect(service.SetStdoutFile(ctx, filepath.Join(dir, "bad.txt"))).ToNot(Succeed())
		service.Stdout().WriteString("lost")
		Expect(service.Status()[1].Failed).To(BeTrue())

		opener.fail = false
		Expect(service.SetStdoutFile(ctx, filepath.Join(dir, "good.txt"))).To(Succeed())
		Expect(service.Status()[1].Failed).To(BeFalse())
		Expect(service.Status()[1].LastError).To(BeEmpty())

		_, err := service.Stdout().WriteString("kept\n")
		Expect(err).ToNot(HaveOccurred())
		Expect(readFile("good.txt")).To(Equal("kept\n"))
	})

	Context("with diagnostics logged to the console the way the program wires them", func() {
		BeforeEach(func() {
			diag := tee.New(tee.AsSink(errCons), nil)
			logger = logadapter.NewSlogAdapter(logadapter.NewJSON(diag, "DEBUG"))
			service = output.NewService(logger, filesystem.NewOpener(logger, false), console, errCons)
		})

		It("keeps log records out of the mirrored files", func() {
			Expect(service.SetStderrFile(ctx, filepath.Join(dir, "hello.0.err.txt"))).To(Succeed())
			service.Stderr().Printf("0 : Hello world :-( !\n")
			Expect(service.SetStdoutFile(ctx, filepath.Join(dir, "hello.0.out.txt"))).To(Succeed())
			service.Stdout().Printf("0 : Hello world :-) !\n")

			Expect(readFile("hello.0.err.txt")).To(Equal("0 : Hello world :-( !\n"))
			Expect(readFile("hello.0.out.txt")).To(Equal("0 : Hello world :-) !\n"))
			Expect(errCons.String()).To(ContainSubstring(`"msg":"Stream retargeted"`))
			Expect(errCons.String()).To(ContainSubstring("0 : Hello world :-( !\n"))
		})
	})

	It("flushes a named stream", func() {
		Expect(service.SetStdoutFile(ctx, filepath.Join(dir, "flush.txt"))).To(Succeed())
		Expect(service.Flush(ctx, domain.Stdout)).To(Succeed())
	})

	It("rejects unknown stream names", func() {
		err := service.SetFile(ctx, "stdlog", filepath.Join(dir, "x.txt"))
		Expect(errors.Is(err, output.ErrUnknownStream)).To(BeTrue())

		_, err = service.Stream("stdlog")
		Expect(err).To(MatchError(output.ErrUnknownStream))

		Expect(service.Flush(ctx, "stdlog")).To(MatchError(output.ErrUnknownStream))
	})

	It("applies configured files with the rank substituted", func() {
		cfg := &domain.OutputConfig{
			Rank:       3,
			StdoutFile: filepath.Join(dir, "hello.{rank}.out.txt"),
			StderrFile: filepath.Join(dir, "hello.{rank}.err.txt"),
		}
		Expect(service.Apply(ctx, cfg)).To(Succeed())

		service.Stdout().Printf("%d : Hello world :-) !\n", cfg.Rank)
		service.Stderr().Printf("%d : Hello world :-( !\n", cfg.Rank)

		Expect(readFile("hello.3.out.txt")).To(Equal("3 : Hello world :-) !\n"))
		Expect(readFile("hello.3.err.txt")).To(Equal("3 : Hello world :-( !\n"))
	})

	It("leaves the streams on the console after shutdown", func() {
		Expect(service.SetStdoutFile(ctx, filepath.Join(dir, "s.txt"))).To(Succeed())
		Expect(service.Shutdown(ctx)).To(Succeed())

		_, err := service.Stdout().WriteString("after")
		Expect(err).ToNot(HaveOccurred())
		Expect(readFile("s.txt")).To(BeEmpty())
		Expect(console.String()).To(Equal("after"))
		Expect(service.Status()[1].File).To(BeEmpty())
	})

	Context("when the file cannot be opened", func() {
		var openErr = errors.New("permission denied")

		BeforeEach(func() {
			service = output.NewService(logger, failingOpener{err: openErr}, console, errCons)
		})

		It("returns the error and degrades to a failing sink", func() {
			err := service.SetStdoutFile(ctx, "/nowhere/out.txt")
			Expect(err).To(MatchError(openErr))

			_, err = service.Stdout().WriteString("still on console")
			Expect(err).To(MatchError(tee.ErrWrite))
			Expect(console.String()).To(Equal("still on console"))
			Expect(service.Stdout().Flush()).To(MatchError(tee.ErrFlush))

			status := service.Status()[1]
			Expect(status.Name).To(Equal(domain.Stdout))
			Expect(status.Failed).To(BeTrue())
			Expect(status.File).To(Equal("/nowhere/out.txt"))

			Expect(service.Shutdown(ctx)).To(MatchError(ContainSubstring("failed to flush stdout")))
		})

		It("reports every failed stream from Apply", func() {
			err := service.Apply(ctx, &domain.OutputConfig{StdoutFile: "a", StderrFile: "b"})
			Expect(err).To(MatchError(ContainSubstring("a for stdout")))
			Expect(err).To(MatchError(ContainSubstring("b for stderr")))
		})
	})
})

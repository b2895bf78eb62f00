package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/immersivescaler/internal/adapters/repository"
	"github.com/okian/immersivescaler/internal/domain/measure"
)

// newDir copies the sample avatar into a fresh directory.
func newDir(t *testing.T) string {
	b, err := os.ReadFile(filepath.Join("..", "internal", "adapters", "repository", "testdata", "sample.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sample.yaml"), b, 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun(t *testing.T) {
	_ = os.Unsetenv("IMSCALER_CONFIG")
	_ = os.Unsetenv("IMSCALER_METRICS_FILE")
	ctx := context.Background()

	convey.Convey("Given the command line", t, func() {
		dir := newDir(t)

		convey.Convey("When no command is given", func() {
			code, _, stderr := runCLI()

			convey.Convey("Then usage is printed", func() {
				convey.So(code, convey.ShouldEqual, exitUsage)
				convey.So(stderr, convey.ShouldContainSubstring, "usage:")
			})
		})

		convey.Convey("When the command is unknown", func() {
			code, _, stderr := runCLI("fly")

			convey.Convey("Then it is reported", func() {
				convey.So(code, convey.ShouldEqual, exitUsage)
				convey.So(stderr, convey.ShouldContainSubstring, `unknown command "fly"`)
			})
		})

		convey.Convey("When a command lacks the avatar name", func() {
			code, _, _ := runCLI("measure", "-dir", dir)

			convey.Convey("Then it is a usage error", func() {
				convey.So(code, convey.ShouldEqual, exitUsage)
			})
		})

		convey.Convey("When listing", func() {
			code, stdout, _ := runCLI("list", "-dir", dir)

			convey.Convey("Then the sample is listed", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				convey.So(strings.TrimSpace(stdout), convey.ShouldEqual, "sample")
			})
		})

		convey.Convey("When measuring", func() {
			code, stdout, _ := runCLI("measure", "-dir", dir, "-arm", "arm_length", "sample")

			convey.Convey("Then the report is printed", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				convey.So(stdout, convey.ShouldContainSubstring, "eye_height:")
				convey.So(stdout, convey.ShouldContainSubstring, "leg_proportions:")
			})
		})

		convey.Convey("When measuring with a bad method", func() {
			code, _, _ := runCLI("measure", "-dir", dir, "-arm", "elbow_to_knee", "sample")

			convey.Convey("Then it is a usage error", func() {
				convey.So(code, convey.ShouldEqual, exitUsage)
			})
		})

		convey.Convey("When scaling to a new name", func() {
			code, stdout, _ := runCLI("scale", "-dir", dir, "-target", "1.5", "-out", "scaled", "sample")
			convey.So(code, convey.ShouldEqual, exitOK)

			convey.Convey("Then the result is printed", func() {
				convey.So(stdout, convey.ShouldContainSubstring, "strategy: standard")
			})

			convey.Convey("Then the scaled avatar is saved beside the original", func() {
				store := repository.NewFileStore(dir)
				names, err := store.List(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(names, convey.ShouldResemble, []string{"sample", "scaled"})

				a, err := store.Load(ctx, "scaled")
				convey.So(err, convey.ShouldBeNil)
				convey.So(a.Measurer().Height(measure.EyeHeight), convey.ShouldAlmostEqual, 1.5, 1e-3)

				orig, err := store.Load(ctx, "sample")
				convey.So(err, convey.ShouldBeNil)
				convey.So(orig.Measurer().Height(measure.EyeHeight), convey.ShouldAlmostEqual, 1.7, 1e-9)
			})
		})

		convey.Convey("When scaling every avatar in the directory", func() {
			b, err := os.ReadFile(filepath.Join(dir, "sample.yaml"))
			convey.So(err, convey.ShouldBeNil)
			convey.So(os.WriteFile(filepath.Join(dir, "twin.yaml"), b, 0o600), convey.ShouldBeNil)

			code, stdout, _ := runCLI("scale-all", "-dir", dir, "-workers", "2", "-target", "1.5", "-suffix", "_small")

			convey.Convey("Then each is saved under the suffixed name", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				convey.So(stdout, convey.ShouldContainSubstring, "saved: sample_small")
				convey.So(stdout, convey.ShouldContainSubstring, "saved: twin_small")

				store := repository.NewFileStore(dir)
				for _, n := range []string{"sample_small", "twin_small"} {
					a, err := store.Load(ctx, n)
					convey.So(err, convey.ShouldBeNil)
					convey.So(a.Measurer().Height(measure.EyeHeight), convey.ShouldAlmostEqual, 1.5, 1e-3)
				}
			})
		})

		convey.Convey("When a batch names a missing avatar", func() {
			code, stdout, _ := runCLI("scale-all", "-dir", dir, "sample", "ghost")

			convey.Convey("Then the others still run and the batch fails", func() {
				convey.So(code, convey.ShouldEqual, exitFailure)
				convey.So(stdout, convey.ShouldContainSubstring, "saved: sample")
				convey.So(stdout, convey.ShouldContainSubstring, "error:")
			})
		})

		convey.Convey("When scaling with an unknown profile", func() {
			code, _, _ := runCLI("scale", "-dir", dir, "-profile", "giant", "sample")

			convey.Convey("Then the command fails", func() {
				convey.So(code, convey.ShouldEqual, exitFailure)
			})
		})

		convey.Convey("When building", func() {
			code, _, _ := runCLI("build", "-dir", dir, "sample")
			convey.So(code, convey.ShouldEqual, exitOK)

			convey.Convey("Then the marker is gone and the target reached", func() {
				a, err := repository.NewFileStore(dir).Load(ctx, "sample")
				convey.So(err, convey.ShouldBeNil)
				convey.So(a.Component, convey.ShouldBeNil)
				convey.So(a.Measurer().Height(measure.EyeHeight), convey.ShouldAlmostEqual, 1.61, 1e-3)
			})

			convey.Convey("Then a second build fails", func() {
				code, _, _ := runCLI("build", "-dir", dir, "sample")
				convey.So(code, convey.ShouldEqual, exitFailure)
			})
		})

		convey.Convey("When resetting a scaled avatar", func() {
			code, _, _ := runCLI("scale", "-dir", dir, "sample")
			convey.So(code, convey.ShouldEqual, exitOK)
			code, stdout, _ := runCLI("reset", "-dir", dir, "sample")

			convey.Convey("Then the nodes are reported", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				convey.So(stdout, convey.ShouldStartWith, "reset ")
			})
		})

		convey.Convey("When the avatar does not exist", func() {
			code, _, _ := runCLI("measure", "-dir", dir, "ghost")

			convey.Convey("Then the command fails", func() {
				convey.So(code, convey.ShouldEqual, exitFailure)
			})
		})

		convey.Convey("When a metrics file is configured", func() {
			path := filepath.Join(t.TempDir(), "imscaler.prom")
			_ = os.Setenv("IMSCALER_METRICS_FILE", path)
			defer func() { _ = os.Unsetenv("IMSCALER_METRICS_FILE") }()

			code, _, _ := runCLI("scale", "-dir", dir, "sample")

			convey.Convey("Then the metrics are written", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				b, err := os.ReadFile(path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(b), convey.ShouldContainSubstring, "immersive_scaler_scale_operations_total")
			})
		})

		convey.Convey("When the config file is missing", func() {
			code, _, stderr := runCLI("-config", filepath.Join(dir, "nope.yaml"), "list")

			convey.Convey("Then loading fails", func() {
				convey.So(code, convey.ShouldEqual, exitFailure)
				convey.So(stderr, convey.ShouldContainSubstring, "failed to load config")
			})
		})
	})
}

package build

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkPipeline_Build benchmarks a dev build over a growing source tree
func BenchmarkPipeline_Build(b *testing.B) {
	for _, pages := range []int{10, 100} {
		b.Run(fmt.Sprintf("pages-%d", pages), func(b *testing.B) {
			f := newFixture(b, Options{})
			f.seed(b)
			for i := 0; i < pages; i++ {
				f.write(b, fmt.Sprintf("app/page%03d.html", i), `@@include('header.html', {"title": "Page"})<main></main>`)
				f.write(b, fmt.Sprintf("app/fonts/f%03d.woff2", i), "font")
			}

			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := f.pipeline.Build(ctx, ModeDev); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkStage_Run benchmarks the scripts stage in prod mode
func BenchmarkStage_Run(b *testing.B) {
	f := newFixture(b, Options{})
	for i := 0; i < 20; i++ {
		f.write(b, fmt.Sprintf("app/js/m%02d.js", i), fmt.Sprintf("export const value%d = (a, b) => a ?? b;\n", i))
	}
	stage, err := f.pipeline.Stage(ClassScripts)
	if err != nil {
		b.Fatal(err)
	}

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := stage.Run(ctx, ModeProd); err != nil {
			b.Fatal(err)
		}
	}
}

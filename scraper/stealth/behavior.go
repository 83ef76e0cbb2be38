package stealth

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// SimulateHumanBehavior runs a bounded interaction pass on the current page:
// curved pointer paths, incremental scrolling, an occasional click or hover,
// then back to the top. Every sub-step swallows its own errors — this phase
// never aborts a scrape.
func SimulateHumanBehavior(ctx context.Context, rng *rand.Rand, width, height int) {
	sleep(ctx, time.Duration(1000+rng.Intn(3000))*time.Millisecond)

	moveCount := 3 + rng.Intn(3)
	for i := 0; i < moveCount; i++ {
		movePointer(ctx, rng, width, height)
	}

	scrollSteps := 5 + rng.Intn(10)
	for i := 0; i < scrollSteps; i++ {
		offset := 100 + rng.Intn(200)
		_ = chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", offset), nil))
		sleep(ctx, time.Duration(300+rng.Intn(700))*time.Millisecond)
	}

	if rng.Float64() > 0.7 {
		_ = chromedp.Run(ctx, chromedp.MouseClickXY(rng.Float64()*float64(width), rng.Float64()*float64(height)))
		sleep(ctx, time.Duration(500+rng.Intn(1000))*time.Millisecond)
	}

	if rng.Float64() > 0.8 {
		_ = chromedp.Run(ctx, chromedp.Evaluate(`(() => {
			const els = document.querySelectorAll('div, span, p');
			if (els.length === 0) return;
			const el = els[Math.floor(Math.random() * els.length)];
			el.dispatchEvent(new MouseEvent('mouseover', { bubbles: true }));
		})()`, nil))
		sleep(ctx, time.Duration(500+rng.Intn(1000))*time.Millisecond)
	}

	_ = chromedp.Run(ctx, chromedp.Evaluate(`window.scrollTo(0, 0)`, nil))
	sleep(ctx, time.Duration(1000+rng.Intn(2000))*time.Millisecond)
}

// movePointer walks the mouse along a jittered line between two random
// points, dispatching raw move events.
func movePointer(ctx context.Context, rng *rand.Rand, width, height int) {
	startX, startY := rng.Float64()*float64(width), rng.Float64()*float64(height)
	endX, endY := rng.Float64()*float64(width), rng.Float64()*float64(height)

	steps := 10 + rng.Intn(20)
	for step := 0; step < steps; step++ {
		progress := float64(step) / float64(steps)
		x := startX + (endX-startX)*progress + (rng.Float64()-0.5)*50
		y := startY + (endY-startY)*progress + (rng.Float64()-0.5)*50

		_ = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}))
		sleep(ctx, time.Duration(20+rng.Intn(50))*time.Millisecond)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

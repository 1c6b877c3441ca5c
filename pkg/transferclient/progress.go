package transferclient

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	progressBarWidth     = 32
	progressRenderPeriod = 120 * time.Millisecond
)

// progressBar рисует общий ASCII-индикатор передачи файла по частям.
// Нулевой указатель или nil-writer допустимы: методы ничего не делают.
type progressBar struct {
	out           io.Writer
	prefix        string
	total         int64
	current       int64
	parts         int
	partsDone     int
	started       time.Time
	lastRender    time.Time
	lastLineWidth int
	finished      bool
	mu            sync.Mutex
}

func newProgressBar(out io.Writer, prefix string, total int64, parts int) *progressBar {
	if out == nil {
		return nil
	}
	p := &progressBar{
		out:     out,
		prefix:  prefix,
		total:   total,
		parts:   parts,
		started: time.Now(),
	}
	p.render(true)
	return p
}

// Part отмечает переданную часть размером n.
func (p *progressBar) Part(n int64) {
	p.add(n)
}

// Skip отмечает часть, которая уже была на сервере.
func (p *progressBar) Skip(n int64) {
	p.add(n)
}

func (p *progressBar) add(n int64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.current += n
	p.partsDone++
	p.mu.Unlock()
	p.render(false)
}

func (p *progressBar) render(force bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	now := time.Now()
	if !force && now.Sub(p.lastRender) < progressRenderPeriod {
		return
	}
	p.lastRender = now
	p.writeLocked(p.lineLocked(), "\r", "")
}

func (p *progressBar) lineLocked() string {
	var b strings.Builder
	b.Grow(len(p.prefix) + 80)
	b.WriteString(p.prefix)
	b.WriteByte(' ')

	ratio := float64(1)
	if p.total > 0 {
		ratio = min(float64(p.current)/float64(p.total), 1)
	}
	filled := min(int(ratio*float64(progressBarWidth)+0.5), progressBarWidth)
	b.WriteByte('[')
	b.WriteString(strings.Repeat("=", filled))
	b.WriteString(strings.Repeat(" ", progressBarWidth-filled))
	fmt.Fprintf(&b, "] %3d%% %s/%s parts %d/%d",
		int(ratio*100+0.5),
		humanize.IBytes(uint64(p.current)),
		humanize.IBytes(uint64(p.total)),
		p.partsDone, p.parts)

	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 && p.current > 0 {
		fmt.Fprintf(&b, " %s/s", humanize.IBytes(uint64(float64(p.current)/elapsed)))
	}
	return b.String()
}

// writeLocked затирает хвост предыдущей строки пробелами.
func (p *progressBar) writeLocked(line, lead, tail string) {
	padding := ""
	if p.lastLineWidth > len(line) {
		padding = strings.Repeat(" ", p.lastLineWidth-len(line))
	}
	p.lastLineWidth = len(line)
	fmt.Fprintf(p.out, "%s%s%s%s", lead, line, padding, tail)
}

func (p *progressBar) Finish() {
	p.complete(nil)
}

func (p *progressBar) Fail(err error) {
	p.complete(err)
}

func (p *progressBar) complete(err error) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true

	suffix := " ✓"
	if err != nil {
		suffix = fmt.Sprintf(" ✗ %v", err)
	}
	p.writeLocked(p.lineLocked()+suffix, "\r", "\n")
}

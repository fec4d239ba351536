// Package cliui holds the terminal presentation shared by reel's commands:
// styles, progress lines for setup work, markdown and the live event
// renderer.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Styles used across commands. Keys and values pair up in config and run
// listings; Dim marks defaults and missing values.
var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = lipgloss.NewStyle().Bold(true)
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const (
	markdownWidth = 80
	spinInterval  = 80 * time.Millisecond
)

var (
	spinStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	spinFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
)

// spinner redraws one status line in place until stopped.
type spinner struct {
	w   io.Writer
	msg string

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func startSpinner(w io.Writer, msg string) *spinner {
	s := &spinner{
		w:    w,
		msg:  msg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *spinner) loop() {
	defer close(s.done)

	ticker := time.NewTicker(spinInterval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		s.draw(spinStyle.Render(spinFrames[frame%len(spinFrames)]), "")

		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

// finish stops the animation and leaves mark on the line for good.
func (s *spinner) finish(mark, suffix string) {
	close(s.stop)
	<-s.done
	s.draw(mark, suffix+"\n")
}

func (s *spinner) draw(mark, suffix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r  %s %s%s", mark, s.msg, suffix)
}

// Step shows msg with a spinner while fn runs. The line ends with Mark(err)
// and the time fn took; fn's error is returned as is.
func Step(w io.Writer, msg string, fn func() error) error {
	s := startSpinner(w, msg)

	start := time.Now()
	err := fn()

	s.finish(Mark(err), " "+StepStyle.Render("("+FormatDuration(time.Since(start))+")"))
	return err
}

// Mark is SuccessMark for a nil error and FailMark otherwise.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration renders d at the precision a person reads it at: "12ms",
// "3.2s" or "2m05s".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// RenderMarkdown formats an assistant answer for the terminal. On failure it
// returns the raw content along with the error, so callers can print either.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(markdownWidth),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}
	return rendered, nil
}

package decision

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
)

// Prompter asks on a terminal. Profiles take J (like) or F (dislike) and
// are asked again on anything else; photos take N (like) or V (dislike) and
// anything else skips the photo.
type Prompter struct {
	out   io.Writer
	lines chan string
	errc  chan error
	start sync.Once
	in    io.Reader
}

// NewPrompter reads answers from in and writes questions to out
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:    in,
		out:   out,
		lines: make(chan string),
		errc:  make(chan error, 1),
	}
}

// readLoop feeds lines to readLine. It runs until in is exhausted; a read
// blocked on a terminal cannot be interrupted, so a cancelled prompt leaves
// it waiting for the next line.
func (p *Prompter) readLoop() {
	scanner := bufio.NewScanner(p.in)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	p.errc <- err
	close(p.lines)
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	p.start.Do(func() { go p.readLoop() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return "", p.readErr()
		}
		return strings.TrimSpace(strings.ToLower(line)), nil
	}
}

func (p *Prompter) readErr() error {
	select {
	case err := <-p.errc:
		// Keep it for later callers
		p.errc <- err
		return err
	default:
		return io.EOF
	}
}

// Decide asks for a profile verdict until it gets J or F
func (p *Prompter) Decide(ctx context.Context, c Candidate) (Decision, error) {
	for {
		fmt.Fprintf(p.out, "Profile with %d photo(s). Press 'F' to dislike or 'J' to like: ", len(c.Frames))
		line, err := p.readLine(ctx)
		if err != nil {
			return Skip, err
		}
		switch line {
		case "j", "like":
			return Like, nil
		case "f", "dislike":
			return Dislike, nil
		}
		fmt.Fprintln(p.out, "Invalid input. Please press 'F' to dislike or 'J' to like.")
	}
}

// Label asks for a verdict on one photo
func (p *Prompter) Label(ctx context.Context, c Candidate) (Decision, error) {
	name := fmt.Sprintf("image_%d.png", c.Index)
	if c.Dir != "" {
		name = filepath.Join(filepath.Base(c.Dir), name)
	}
	fmt.Fprintf(p.out, "Image %s: Press 'N' to like, 'V' to dislike, or any other key to skip: ", name)

	line, err := p.readLine(ctx)
	if err != nil {
		return Skip, err
	}
	switch line {
	case "n":
		fmt.Fprintln(p.out, "Image labeled as liked.")
		return Like, nil
	case "v":
		fmt.Fprintln(p.out, "Image labeled as disliked.")
		return Dislike, nil
	default:
		return Skip, nil
	}
}

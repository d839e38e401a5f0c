// Package core defines the core business types and interfaces for the blog workflow.
package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownLength indicates that a length value is not one of short, medium or long.
var ErrUnknownLength = errors.New("unknown blog length")

// ErrUnknownPolishStyle indicates that a polish style value is not supported.
var ErrUnknownPolishStyle = errors.New("unknown polish style")

// Length is the requested size of a generated blog post.
type Length string

// Supported blog lengths.
const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// ParseLength validates a raw length value.
func ParseLength(raw string) (Length, error) {
	switch length := Length(raw); length {
	case LengthShort, LengthMedium, LengthLong:
		return length, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLength, raw)
	}
}

// PolishStyle selects the editorial register used when polishing text.
type PolishStyle string

// Supported polish styles.
const (
	StyleBlog    PolishStyle = "blog"
	StyleArticle PolishStyle = "article"
	StyleStory   PolishStyle = "story"
	StyleOther   PolishStyle = "other"
)

// ParsePolishStyle validates a raw polish style value.
func ParsePolishStyle(raw string) (PolishStyle, error) {
	switch style := PolishStyle(raw); style {
	case StyleBlog, StyleArticle, StyleStory, StyleOther:
		return style, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolishStyle, raw)
	}
}

// Audio is synthesized speech together with its container format (e.g. "mp3").
type Audio struct {
	Data   []byte
	Format string
}

// Generator turns a topic into raw blog text.
type Generator interface {
	Generate(ctx context.Context, topic string, length Length) (string, error)
}

// Polisher rewrites text in the requested style.
type Polisher interface {
	Polish(ctx context.Context, text string, style PolishStyle) (string, error)
}

// Synthesizer converts text to speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// ResultStore persists workflow artifacts.
type ResultStore interface {
	SaveText(title, body string) (string, error)
	SaveTextAt(path, title, body string) error
	AudioPath(format string) string
	SaveBytes(path string, data []byte) error
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

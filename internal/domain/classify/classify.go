// Package classify assigns domain tags to contributions and free-text queries.
//
// Curated repository topics always win. Only when none survive normalization
// is the open-vocabulary Completer consulted, and its failures never escape:
// the classifier degrades to an empty tag set instead.
package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/devmatch/internal/domain/tags"
)

// Default classifier limits.
const (
	defaultMaxTags  = 5
	defaultMaxPaths = 15
	defaultTimeout  = 10 * time.Second
)

// Source tells where a classification came from.
type Source string

const (
	SourceCurated Source = "curated"
	SourceAI      Source = "ai"
	SourceEmpty   Source = "empty"
	SourceError   Source = "error"
	SourceNone    Source = "none"
)

// Completer is the open-vocabulary text classifier capability.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Input is the context the classifier sees for one contribution.
type Input struct {
	Message         string
	FilePaths       []string
	RepoDescription string
}

// Result is the outcome of one classification.
type Result struct {
	Tags   []string
	Source Source
	// Err is the absorbed Completer error when Source is SourceError.
	Err error
}

// Settled reports whether the classification reached a verdict. Failed calls
// and a missing Completer leave the record unclassified.
func (r Result) Settled() bool {
	switch r.Source {
	case SourceCurated, SourceAI, SourceEmpty:
		return true
	}
	return false
}

// Classifier implements the curated-first, AI-fallback tagging policy.
type Classifier struct {
	completer Completer
	vocab     *Vocabulary
	maxTags   int
	maxPaths  int
	timeout   time.Duration
}

// New creates a Classifier. A nil completer disables the AI fallback.
func New(completer Completer, opts ...Option) *Classifier {
	c := &Classifier{
		completer: completer,
		maxTags:   defaultMaxTags,
		maxPaths:  defaultMaxPaths,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.vocab == nil {
		c.vocab = NewVocabulary()
	}
	return c
}

// Ready reports whether the AI fallback is available.
func (c *Classifier) Ready() bool { return c.completer != nil }

// Vocabulary returns the style-guide vocabulary the classifier reads from.
func (c *Classifier) Vocabulary() *Vocabulary { return c.vocab }

// Classify tags one contribution. Curated topics that survive normalization
// are returned as-is and the Completer is not called.
func (c *Classifier) Classify(ctx context.Context, curatedTopics []string, in Input) Result {
	if curated := tags.NormalizeAll(curatedTopics); len(curated) > 0 {
		return Result{Tags: curated, Source: SourceCurated}
	}
	return c.infer(ctx, contributionPrompt(in, c.maxPaths, c.maxTags, c.vocab.Snapshot()))
}

// Expand turns a free-text project description into domain tags using the
// AI path only. Blank descriptions yield no tags without calling out.
func (c *Classifier) Expand(ctx context.Context, description string) Result {
	if strings.TrimSpace(description) == "" {
		return Result{Source: SourceEmpty}
	}
	return c.infer(ctx, queryPrompt(description, c.maxTags, c.vocab.Snapshot()))
}

func (c *Classifier) infer(ctx context.Context, prompt string) Result {
	if c.completer == nil {
		return Result{Source: SourceNone}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.completer.Complete(ctx, systemPrompt(c.maxTags), prompt)
	if err != nil {
		return Result{Source: SourceError, Err: fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)}
	}
	out := tags.Parse(raw, c.maxTags)
	if len(out) == 0 {
		return Result{Source: SourceEmpty}
	}
	return Result{Tags: out, Source: SourceAI}
}

func systemPrompt(maxTags int) string {
	return fmt.Sprintf(`You label software engineering work with technical domain tags.
Return at most %d tags, most relevant first, separated by commas and nothing else.
Each tag is lowercase words joined by hyphens, for example distributed-systems.
Tags describe subject matter. Never return a programming language name.
Prefer tags from the provided vocabulary when one fits; invent a new tag only when none does.`, maxTags)
}

func contributionPrompt(in Input, maxPaths, maxTags int, vocab []string) string {
	var b strings.Builder
	if d := strings.TrimSpace(in.RepoDescription); d != "" {
		fmt.Fprintf(&b, "Repository description: %s\n", d)
	}
	fmt.Fprintf(&b, "Commit message: %s\n", strings.TrimSpace(in.Message))
	paths := in.FilePaths
	if len(paths) > maxPaths {
		paths = paths[:maxPaths]
	}
	if len(paths) > 0 {
		b.WriteString("Changed files:\n")
		for _, p := range paths {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	writeVocabulary(&b, vocab)
	fmt.Fprintf(&b, "Return up to %d domain tags.", maxTags)
	return b.String()
}

func queryPrompt(description string, maxTags int, vocab []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project description: %s\n", strings.TrimSpace(description))
	writeVocabulary(&b, vocab)
	fmt.Fprintf(&b, "Return up to %d domain tags an engineer on this project would need experience in.", maxTags)
	return b.String()
}

func writeVocabulary(b *strings.Builder, vocab []string) {
	if len(vocab) == 0 {
		return
	}
	fmt.Fprintf(b, "Vocabulary: %s\n", strings.Join(vocab, ", "))
}

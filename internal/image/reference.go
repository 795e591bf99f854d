// Package image defines the image reference type shared by the build,
// publish and deploy stages.
package image

import (
	"fmt"
	"regexp"

	"github.com/distribution/reference"
)

// tagPattern anchors the distribution tag grammar so partial matches
// are rejected.
var tagPattern = regexp.MustCompile(`^` + reference.TagRegexp.String() + `$`)

// Ref identifies a container image: a registry-qualified repository
// name, a tag, and optionally the content digest reported by the
// builder. Two refs with different tags may point at the same content.
type Ref struct {
	Repository string
	Tag        string
	Digest     string
}

// String renders the ref in the repository:tag form understood by the
// Docker daemon and the registry.
func (r Ref) String() string {
	return r.Repository + ":" + r.Tag
}

// WithTag returns a copy of the ref pointing at the same content under
// a different tag.
func (r Ref) WithTag(tag string) Ref {
	return Ref{Repository: r.Repository, Tag: tag, Digest: r.Digest}
}

// ParseRepository normalizes and validates a repository name such as
// "registry.example.com/team/app". A tag or digest in the input is an
// error; tags are chosen per run.
func ParseRepository(s string) (string, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return "", fmt.Errorf("invalid repository %q: %w", s, err)
	}
	if !reference.IsNameOnly(named) {
		return "", fmt.Errorf("repository %q must not carry a tag or digest", s)
	}
	return reference.FamiliarName(named), nil
}

// Domain returns the registry host for a repository name, used as the
// server address during registry authentication.
func Domain(repository string) (string, error) {
	named, err := reference.ParseNormalizedNamed(repository)
	if err != nil {
		return "", fmt.Errorf("invalid repository %q: %w", repository, err)
	}
	return reference.Domain(named), nil
}

// ValidateTag checks that a tag is non-empty and registry-legal.
func ValidateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("tag must not be empty")
	}
	if !tagPattern.MatchString(tag) {
		return fmt.Errorf("invalid tag %q: must match %s", tag, reference.TagRegexp)
	}
	return nil
}

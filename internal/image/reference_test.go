package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefString(t *testing.T) {
	ref := Ref{Repository: "registry.example.com/team/app", Tag: "42"}
	assert.Equal(t, "registry.example.com/team/app:42", ref.String())
}

func TestRefWithTag(t *testing.T) {
	ref := Ref{Repository: "registry.example.com/team/app", Tag: "42", Digest: "sha256:abc"}

	latest := ref.WithTag("latest")

	assert.Equal(t, "registry.example.com/team/app:latest", latest.String())
	// Retagging never changes the underlying content.
	assert.Equal(t, ref.Digest, latest.Digest)
	assert.Equal(t, "42", ref.Tag)
}

func TestParseRepository(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "registry qualified",
			input: "registry.example.com/team/app",
			want:  "registry.example.com/team/app",
		},
		{
			name:  "short name",
			input: "repo/app",
			want:  "repo/app",
		},
		{
			name:    "tag not allowed",
			input:   "repo/app:latest",
			wantErr: true,
		},
		{
			name:    "digest not allowed",
			input:   "repo/app@sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			wantErr: true,
		},
		{
			name:    "uppercase rejected",
			input:   "Repo/App",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepository(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDomain(t *testing.T) {
	domain, err := Domain("registry.example.com/team/app")
	require.NoError(t, err)
	assert.Equal(t, "registry.example.com", domain)
}

func TestValidateTag(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		wantErr bool
	}{
		{name: "numeric build id", tag: "42"},
		{name: "latest", tag: "latest"},
		{name: "dots dashes underscores", tag: "v1.2.3_rc-1"},
		{name: "empty", tag: "", wantErr: true},
		{name: "slash", tag: "a/b", wantErr: true},
		{name: "colon", tag: "a:b", wantErr: true},
		{name: "leading dash", tag: "-oops", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTag(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

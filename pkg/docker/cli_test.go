package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLoadOutput(t *testing.T) {
	cases := []struct {
		name string
		out  string
		want []string
	}{
		{
			name: "tagged image",
			out:  "Loaded image: nginx:1.25\n",
			want: []string{"nginx:1.25"},
		},
		{
			name: "untagged image id",
			out:  "Loaded image ID: sha256:abc123\n",
			want: []string{"sha256:abc123"},
		},
		{
			name: "multiple images in one tarball",
			out:  "Loaded image: app/frontend:2.0\nLoaded image: app/backend:2.0\n",
			want: []string{"app/frontend:2.0", "app/backend:2.0"},
		},
		{
			name: "case insensitive with surrounding noise",
			out:  "some progress output\nloaded image: redis:7\ntrailing\n",
			want: []string{"redis:7"},
		},
		{
			name: "registry-qualified reference",
			out:  "Loaded image: registry.example.com/ns/app:1.0\n",
			want: []string{"registry.example.com/ns/app:1.0"},
		},
		{
			name: "no match",
			out:  "error response from daemon\n",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLoadOutput(tc.out))
		})
	}
}

func TestNewCLIEngine_DefaultBinary(t *testing.T) {
	assert.Equal(t, "docker", NewCLIEngine("").Binary)
	assert.Equal(t, "podman", NewCLIEngine("podman").Binary)
}

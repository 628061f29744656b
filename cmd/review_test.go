package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prreviewer/internal/review"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    review.Task
		wantErr bool
	}{
		{in: "acme/widgets#42", want: review.Task{Owner: "acme", Repo: "widgets", PRNumber: 42}},
		{in: " acme/widgets#7 ", want: review.Task{Owner: "acme", Repo: "widgets", PRNumber: 7}},
		{in: "https://github.com/acme/widgets/pull/42", want: review.Task{Owner: "acme", Repo: "widgets", PRNumber: 42}},
		{in: "https://github.com/acme/widgets/pull/42/files", want: review.Task{Owner: "acme", Repo: "widgets", PRNumber: 42}},
		{in: "acme/widgets", wantErr: true},
		{in: "widgets#3", wantErr: true},
		{in: "acme/widgets#zero", wantErr: true},
		{in: "acme/widgets#0", wantErr: true},
		{in: "a/b/c#1", wantErr: true},
		{in: "https://github.com/acme/widgets/issues/42", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTarget(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

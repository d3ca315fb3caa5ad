package ledger

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeIndices(t *testing.T) {
	tests := []struct {
		name    string
		in      []int
		n       int
		want    []int
		wantErr error
	}{
		{"sorted and deduped", []int{3, 1, 3, 0}, 4, []int{0, 1, 3}, nil},
		{"single", []int{0}, 1, []int{0}, nil},
		{"empty selection", nil, 3, nil, ErrNoSelection},
		{"negative", []int{-1}, 3, nil, ErrIndexOutOfRange},
		{"past end", []int{3}, 3, nil, ErrIndexOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeIndices(tt.in, tt.n)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

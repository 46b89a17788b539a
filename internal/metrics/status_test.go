package metrics

import (
	"reflect"
	"testing"
)

func TestFlattenPeerCodes(t *testing.T) {
	tests := []struct {
		name    string
		buckets map[string]map[string]int
		want    []PeerCode
	}{
		{
			name:    "nil buckets",
			buckets: nil,
			want:    nil,
		},
		{
			name:    "empty buckets",
			buckets: map[string]map[string]int{},
			want:    nil,
		},
		{
			name: "single bucket",
			buckets: map[string]map[string]int{
				"RST_STREAM": {"CANCEL": 10},
			},
			want: []PeerCode{
				{Frame: "RST_STREAM", Code: "CANCEL", Count: 10},
			},
		},
		{
			name: "sorted by count desc then frame then code",
			buckets: map[string]map[string]int{
				"RST_STREAM": {
					"STREAM_CLOSED": 3,
					"CANCEL":        7,
				},
				"GOAWAY": {
					"ENHANCE_YOUR_CALM": 3,
					"NO_ERROR":          1,
				},
			},
			want: []PeerCode{
				{Frame: "RST_STREAM", Code: "CANCEL", Count: 7},
				{Frame: "GOAWAY", Code: "ENHANCE_YOUR_CALM", Count: 3},
				{Frame: "RST_STREAM", Code: "STREAM_CLOSED", Count: 3},
				{Frame: "GOAWAY", Code: "NO_ERROR", Count: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenPeerCodes(tt.buckets)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenPeerCodes() = %v, want %v", got, tt.want)
			}
		})
	}
}

package metrics

import "sort"

// PeerCode is the number of frames of one type the peer sent with one error code.
type PeerCode struct {
	Frame string `json:"frame" yaml:"frame"`
	Code  string `json:"code" yaml:"code"`
	Count int    `json:"count" yaml:"count"`
}

// FlattenPeerCodes converts a nested frame->code map into a sorted slice.
// Rows are sorted by descending count, then by frame/code for stability.
func FlattenPeerCodes(buckets map[string]map[string]int) []PeerCode {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]PeerCode, 0)
	for frame, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, PeerCode{Frame: frame, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Frame == rows[j].Frame {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Frame < rows[j].Frame
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

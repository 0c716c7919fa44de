package engine

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"sort"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// immediatePayload is the context-enriched payload spec.md §4.4 builds for
// an IMMEDIATE phase: the execution's initial payload, the results of each
// declared dependency in order, and the phase's own metadata.
type immediatePayload struct {
	InitialPayload    []byte   `json:"initial_payload"`
	DependencyResults [][]byte `json:"dependency_results"`
	Metadata          []byte   `json:"metadata,omitempty"`
}

func encodeImmediatePayload(initial []byte, depResults [][]byte, metadata []byte) []byte {
	p := immediatePayload{InitialPayload: initial, DependencyResults: depResults, Metadata: metadata}
	b, err := json.Marshal(p)
	if err != nil {
		// Marshaling a struct of byte slices cannot fail; guard anyway so a
		// future field addition can't silently produce an empty payload.
		panic("engine: encode immediate payload: " + err.Error())
	}
	return b
}

// aggregatedResult is the encoded value an AGGREGATION phase completes with:
// the ordered results of its declared dependencies.
type aggregatedResult struct {
	DependencyResults [][]byte `json:"dependency_results"`
}

func encodeAggregatedResult(depResults [][]byte) []byte {
	b, err := json.Marshal(aggregatedResult{DependencyResults: depResults})
	if err != nil {
		panic("engine: encode aggregated result: " + err.Error())
	}
	return b
}

// consensusEntry is one responder's submission in the deterministic merge of
// coordination responses: a JSON array of entries sorted by principal, so
// two honest implementations agree byte-for-byte (P9).
type consensusEntry struct {
	Responder models.Principal `json:"responder"`
	Response  []byte           `json:"response"`
}

// sortConsensusEntries orders entries by responder principal so the encoded
// result is independent of submission order (P9).
func sortConsensusEntries(entries []consensusEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Responder[:], entries[j].Responder[:]) < 0
	})
}

func encodeConsensusResult(entries []consensusEntry) []byte {
	b, err := json.Marshal(entries)
	if err != nil {
		panic("engine: encode consensus result: " + err.Error())
	}
	return b
}

func encodeMonitoringLog(log []models.MonitoringUpdate) []byte {
	b, err := json.Marshal(log)
	if err != nil {
		panic("engine: encode monitoring log: " + err.Error())
	}
	return b
}

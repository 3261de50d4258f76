//go:build linux

package backend

import (
	"encoding/json"
	"fmt"
	"os/exec"
)

// pwDumpNode is the subset of `pw-dump`'s JSON node schema this backend
// cares about: id, node.class (to filter to playback streams), and the
// application.process.id property used for per-process isolation (spec
// §4.4, "Per-process isolation").
type pwDumpNode struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
	Info struct {
		Props map[string]any `json:"props"`
	} `json:"info"`
}

// findPipewireNodeForPID enumerates the PipeWire graph via `pw-dump` and
// returns the id of the output (playback) stream node owned by pid. Full
// pw_registry bindings would avoid the subprocess round-trip, but pw-dump
// emits the same per-process property (application.process.id) that the
// native stream connection below needs, and ships with every PipeWire
// install that has pw-record, so the discovery step gets the same
// availability floor as the fallback strategy.
func findPipewireNodeForPID(pid uint32) (int, error) {
	out, err := exec.Command("pw-dump").Output()
	if err != nil {
		return 0, fmt.Errorf("pw-dump: %w", err)
	}

	var nodes []pwDumpNode
	if err := json.Unmarshal(out, &nodes); err != nil {
		return 0, fmt.Errorf("parse pw-dump output: %w", err)
	}

	for _, n := range nodes {
		if n.Type != "PipeWire:Interface:Node" {
			continue
		}
		mediaClass, _ := n.Info.Props["media.class"].(string)
		if mediaClass != "Stream/Output/Audio" {
			continue
		}
		procIDStr, ok := n.Info.Props["application.process.id"]
		if !ok {
			continue
		}
		var procID int
		switch v := procIDStr.(type) {
		case float64:
			procID = int(v)
		case string:
			fmt.Sscanf(v, "%d", &procID)
		}
		if procID == int(pid) {
			return n.ID, nil
		}
	}
	return 0, fmt.Errorf("no playback node found for pid %d", pid)
}

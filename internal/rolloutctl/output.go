package rolloutctl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"modelswap/internal/rollout"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printOutcome(e *env, o rollout.Outcome) error {
	if e.json {
		return writeJSON(e.out, o)
	}
	result := "FAILED"
	if o.Success {
		result = "OK"
	}
	fmt.Fprintf(e.out, "rollout %s: %s %s (%s) in %s\n", o.ID, o.ArtifactID, result, o.Reason, o.Duration().Round(time.Millisecond))
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REPLICA\tSTATE\tVERSION\tARTIFACT\tDETAIL")
	for _, r := range o.Replicas {
		version, artifact := "-", "-"
		if r.LastStatus != nil {
			version = fmt.Sprint(r.LastStatus.Version)
			artifact = r.LastStatus.ArtifactID
		}
		detail := r.LastError
		if detail == "" {
			detail = r.DispatchError
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Replica, r.State, version, artifact, oneLine(detail, 80))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, msg := range o.Errors {
		fmt.Fprintf(e.out, "  - %s\n", msg)
	}
	return nil
}

func printReports(e *env, reports []rollout.ReplicaReport) error {
	if e.json {
		return writeJSON(e.out, reports)
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REPLICA\tREADY\tVERSION\tARTIFACT\tUPDATING\tLAST ERROR")
	for _, r := range reports {
		if r.Status == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\tunreachable: %s\n", r.Replica, oneLine(r.Error, 80))
			continue
		}
		s := r.Status
		fmt.Fprintf(tw, "%s\t%t\t%d\t%s\t%t\t%s\n", r.Replica, s.Ready, s.Version, s.ArtifactID, s.Updating, oneLine(s.LastError, 80))
	}
	return tw.Flush()
}

// oneLine flattens s and truncates it to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

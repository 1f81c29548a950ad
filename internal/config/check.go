package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/viper"
)

// Status is the checked state of one variable.
type Status struct {
	Variable
	Set      bool
	Display  string
	Problems []string
}

// OK reports whether the variable passed validation.
func (s Status) OK() bool { return len(s.Problems) == 0 }

// Check evaluates every variable without failing fast. Secret values are masked.
func Check(v *viper.Viper) []Status {
	bind(v)

	out := make([]Status, 0, len(Variables))
	for _, spec := range Variables {
		val := v.GetString(spec.Key)
		st := Status{
			Variable: spec,
			Set:      v.InConfig(spec.Key) || envSet(spec.Env),
			Problems: validateOne(v, spec),
		}
		switch {
		case val == "":
			st.Display = "-"
		case spec.Secret:
			st.Display = mask(val)
		default:
			st.Display = val
		}
		out = append(out, st)
	}
	return out
}

// WriteReport prints statuses as a table and returns the number of failing variables.
func WriteReport(w io.Writer, statuses []Status) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tSTATUS\tVALUE\tDESCRIPTION")
	failed := 0
	for _, st := range statuses {
		status := "ok"
		switch {
		case !st.OK():
			status = "INVALID: " + strings.Join(st.Problems, "; ")
			failed++
		case !st.Set && st.Default != "":
			status = "default"
		case !st.Set:
			status = "unset"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Env, status, st.Display, st.Description)
	}
	tw.Flush()
	return failed
}

func envSet(name string) bool {
	val, ok := os.LookupEnv(name)
	return ok && val != ""
}

func mask(val string) string {
	if len(val) <= 4 {
		return "****"
	}
	return val[:2] + strings.Repeat("*", 6) + val[len(val)-2:]
}

package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jusunglee/hankyu-go/internal/query"
)

// WriteText prints a result as an aligned table for terminals
func WriteText(w io.Writer, res *query.Result) error {
	fmt.Fprintf(w, "%s発 %s以降 (%s)\n", StationName(res.Station), res.Time, res.Variant)
	if res.Ended() {
		_, err := fmt.Fprintln(w, MsgServiceEnded)
		return err
	}

	tw := tabwriter.NewWriter(w, 5, 3, 3, ' ', 0)
	for _, c := range Cards(res.Departures) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Header, c.LineName, c.Description)
	}
	return tw.Flush()
}

package surface

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/hazardscope/hazardscope/pkg/batch"
	"github.com/hazardscope/hazardscope/pkg/fault"
	"github.com/hazardscope/hazardscope/pkg/geo"
	"github.com/hazardscope/hazardscope/pkg/record"
	"github.com/hazardscope/hazardscope/pkg/scoring"
)

// TerminalRenderer renders results as colored terminal output. Color is
// off when NoColor is set or the NO_COLOR environment variable exists.
type TerminalRenderer struct {
	NoColor bool
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func (r *TerminalRenderer) tierColor(t scoring.Tier) string {
	if r.noColor() {
		return ""
	}
	switch t {
	case scoring.TierSafe, scoring.TierLow:
		return colorGreen
	case scoring.TierMedium:
		return colorYellow
	case scoring.TierHigh, scoring.TierCritical:
		return colorRed
	default:
		return ""
	}
}

func (r *TerminalRenderer) noColor() bool {
	if r.NoColor {
		return true
	}
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func (r *TerminalRenderer) bold(s string) string {
	if r.noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func (r *TerminalRenderer) dim(s string) string {
	if r.noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func (r *TerminalRenderer) colored(s, color string) string {
	if r.noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, result *scoring.Result) error {
	tc := r.tierColor(result.Tier)

	fmt.Fprintf(w, "%s\n\n",
		r.bold(fmt.Sprintf("Hazardscope: Score %d (%s)", result.Score, r.colored(string(result.Tier), tc))))

	if result.Address != "" {
		fmt.Fprintf(w, "Address:  %s\n", result.Address)
	}
	fmt.Fprintf(w, "Location: %s\n", result.Location)
	fmt.Fprintf(w, "Radius:   %.1f miles\n", result.RadiusMiles)
	fmt.Fprintf(w, "Sites:    %d found, %d unremediated\n\n", result.SitesFound, result.Unremediated)

	if len(result.Evidence) == 0 {
		fmt.Fprintln(w, "No unremediated sites within radius.")
		fmt.Fprintln(w)
		return nil
	}

	fmt.Fprintln(w, "Unremediated sites:")
	shown := len(result.Evidence)
	if shown > MaxEvidence {
		shown = MaxEvidence
	}
	for i, ev := range result.Evidence[:shown] {
		s := ev.Site
		fmt.Fprintf(w, "  %d. %6.1f mi  %s %s\n", i+1, ev.DistanceMiles, r.bold(siteName(s)), r.dim("["+string(s.Status)+"]"))
		if len(s.Contaminants) > 0 {
			for _, line := range wrapText(strings.Join(s.Contaminants, ", "), 60) {
				fmt.Fprintf(w, "               %s\n", r.dim(line))
			}
		}
	}
	if len(result.Evidence) > MaxEvidence {
		fmt.Fprintf(w, "     %s\n", r.dim(fmt.Sprintf("... and %d more", len(result.Evidence)-MaxEvidence)))
	}
	fmt.Fprintln(w)
	return nil
}

func (r *TerminalRenderer) RenderBatch(w io.Writer, report *batch.Report) error {
	fmt.Fprintf(w, "%s\n\n", r.bold(fmt.Sprintf("Hazardscope: %d subjects within %.1f miles", len(report.Outcomes), report.Radius)))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tADDRESS\tSCORE\tTIER\tSITES")
	for _, o := range report.Outcomes {
		addr := o.Subject.FullAddress()
		if addr == "" {
			addr = "-"
		}
		if o.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t%s\t%s\n", o.Subject.ID, addr, r.colored("ERROR", r.tierColor(scoring.TierCritical)), errorKind(o.Err))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n", o.Subject.ID, addr, o.Result.Score,
			r.colored(string(o.Result.Tier), r.tierColor(o.Result.Tier)), o.Result.Unremediated)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	counts := report.TierCounts()
	parts := make([]string, 0, len(scoring.Tiers))
	for _, t := range scoring.Tiers {
		parts = append(parts, fmt.Sprintf("%s %d", t, counts[t]))
	}
	fmt.Fprintf(w, "Tiers: %s\n", strings.Join(parts, " / "))

	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintf(w, "\n%s\n", r.bold(fmt.Sprintf("Failed (%d):", len(failures))))
		for _, o := range failures {
			fmt.Fprintf(w, "  %s %s\n", o.Subject.ID, r.dim(o.Err.Error()))
		}
	}
	fmt.Fprintln(w)
	return nil
}

func (r *TerminalRenderer) RenderSites(w io.Writer, sites []record.Site, center *geo.Point) error {
	if len(sites) == 0 {
		fmt.Fprintln(w, "No matching sites.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSTATE\tMILES\tCONTAMINANTS")
	for _, v := range SiteViews(sites, center) {
		miles := "-"
		if v.DistanceMiles != nil {
			miles = fmt.Sprintf("%.1f", *v.DistanceMiles)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", v.ID, siteName(v.Site), v.Status, v.State, miles, strings.Join(v.Contaminants, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d sites\n", len(sites))
	return nil
}

func (r *TerminalRenderer) RenderClearance(w io.Writer, report *batch.ClearanceReport) error {
	fmt.Fprintf(w, "%s\n\n", r.bold(fmt.Sprintf("Hazardscope: %d of %d subjects more than %.1f miles from any site",
		len(report.Clear), report.Checked, report.Miles)))

	if len(report.Clear) == 0 {
		fmt.Fprintln(w, "No subjects are clear.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tADDRESS\tNEAREST SITE\tMILES")
		for _, c := range report.Clear {
			addr := c.Subject.FullAddress()
			if addr == "" {
				addr = "-"
			}
			nearest, miles := "-", "-"
			if c.Nearest != nil {
				nearest = siteName(c.Nearest.Site)
				miles = fmt.Sprintf("%.1f", c.Nearest.DistanceMiles)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Subject.ID, addr, nearest, r.colored(miles, r.tierColor(scoring.TierSafe)))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(report.Unlocated) > 0 {
		fmt.Fprintf(w, "\n%s\n", r.bold(fmt.Sprintf("Unlocated (%d):", len(report.Unlocated))))
		for _, o := range report.Unlocated {
			fmt.Fprintf(w, "  %s %s\n", o.Subject.ID, r.dim(o.Err.Error()))
		}
	}
	fmt.Fprintln(w)
	return nil
}

func siteName(s record.Site) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

func errorKind(err error) string {
	if k := fault.KindOf(err); k != fault.KindUnknown {
		return string(k)
	}
	return "error"
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}

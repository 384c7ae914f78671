package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ppiankov/geotrail/internal/model"
	"github.com/ppiankov/geotrail/internal/stats"
)

const safetyNotice = "This report contains no coordinates, dates or personal data. It describes only the structure of the JSON file and is safe to share."

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Renderer writes reports and extraction results in the supported formats
type Renderer struct {
	includeFooter bool
	out           io.Writer
}

// NewRenderer creates a renderer whose terminal summaries go to out
func NewRenderer(includeFooter bool, out io.Writer) *Renderer {
	if out == nil {
		out = os.Stderr
	}
	return &Renderer{includeFooter: includeFooter, out: out}
}

// RenderJSON writes v as indented JSON to path
func (r *Renderer) RenderJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as Markdown to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// Markdown renders the report as a Markdown document
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	b.WriteString("# Location history diagnostic report\n\n")
	fmt.Fprintf(&b, "> %s\n\n", safetyNotice)
	fmt.Fprintf(&b, "- Report: `%s` (schema %s)\n", report.ReportID, report.Version)
	fmt.Fprintf(&b, "- Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if report.BuildInfo != "" {
		fmt.Fprintf(&b, "- Build: %s\n", report.BuildInfo)
	}

	fs := report.FileStats
	b.WriteString("\n## File\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Scanned nodes | %d |\n", fs.ScannedNodes)
	fmt.Fprintf(&b, "| Scan limit reached | %t |\n", fs.ScanLimitReached)
	fmt.Fprintf(&b, "| Estimated records | %d |\n", fs.EstimatedRecords)
	fmt.Fprintf(&b, "| Max depth | %d |\n", fs.MaxDepth)
	fmt.Fprintf(&b, "| Unique key names | %d |\n", fs.UniqueKeyPatterns)

	b.WriteString("\n## Formats\n\n")
	b.WriteString("| Format | Found | Count |\n|---|---|---|\n")
	for _, fc := range report.Formats {
		found := "no"
		if fc.Found {
			found = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %d |\n", fc.Format, found, fc.Count)
	}

	f := report.FilterStats
	b.WriteString("\n## Candidates\n\n")
	fmt.Fprintf(&b, "- Total: %d\n- Extracted: %d\n- Invalid coordinates: %d\n- No timestamp: %d\n- Zero or negative timestamp: %d\n- Unreadable time fields: %d\n",
		f.TotalCandidates, f.Extracted, f.InvalidCoords, f.NoTimestamp, f.NonPositiveTimestamp, f.InvalidTimeFields)

	if len(report.SuccessSamples) > 0 {
		b.WriteString("\n## Successful paths\n\n")
		for _, s := range report.SuccessSamples {
			fmt.Fprintf(&b, "- `%s` (%s)\n", s.Path, s.Format)
		}
	}

	if len(report.Rejections) > 0 {
		b.WriteString("\n## Rejections\n\n")
		b.WriteString("| Stage | Path | Reason |\n|---|---|---|\n")
		for _, rej := range report.Rejections {
			fmt.Fprintf(&b, "| %s | `%s` | %s |\n", rej.Stage, mdCell(rej.Path), rej.Message)
		}
	}

	b.WriteString("\n## Recommendations\n\n")
	for _, rec := range report.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}

	if report.RootShape != nil {
		b.WriteString("\n## Structure\n\n```\n")
		writeShape(&b, "$", report.RootShape, 0)
		b.WriteString("```\n")
	}

	if r.includeFooter {
		b.WriteString("\n---\n*Generated by geotrail. Only structure and counts are included.*\n")
	}
	return b.String()
}

// mdCell keeps key names from breaking table rows
func mdCell(s string) string {
	return strings.NewReplacer("|", `\|`, "`", "'", "\n", " ").Replace(s)
}

// writeShape renders a shape tree as an indented outline
func writeShape(b *strings.Builder, name string, n *model.ShapeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	desc := string(n.Type)
	switch {
	case n.StringFormat != "":
		desc = n.StringFormat
	case n.NumberRange != "":
		desc = "number:" + string(n.NumberRange)
	case n.ArrayLength != nil:
		desc = fmt.Sprintf("array[%d]", *n.ArrayLength)
	}
	if n.Truncated {
		desc += " …"
	}
	fmt.Fprintf(b, "%s%s: %s\n", indent, name, desc)

	if n.Type == model.ShapeObject {
		for _, key := range n.Keys {
			if child, ok := n.Children[key]; ok {
				writeShape(b, key, child, depth+1)
			}
		}
		return
	}
	for key, child := range n.Children {
		writeShape(b, key, child, depth+1)
	}
}

// RenderHTML writes the report as a standalone HTML page
func (r *Renderer) RenderHTML(report *model.Report, path string) error {
	var buf bytes.Buffer
	if err := r.HTML(report, &buf); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

// HTML renders the report page to w. Every value goes through text nodes,
// so key names can never inject markup.
func (r *Renderer) HTML(report *model.Report, w io.Writer) error {
	body := element(atom.Body, nil,
		element(atom.H1, nil, text("Location history diagnostic report")),
		element(atom.P, attrs("class", "notice"), text(safetyNotice)),
		element(atom.P, nil, text(fmt.Sprintf("Report %s, schema %s, generated %s",
			report.ReportID, report.Version, report.GeneratedAt.Format("2006-01-02 15:04:05 MST")))),
	)

	fs := report.FileStats
	body.AppendChild(element(atom.H2, nil, text("File")))
	body.AppendChild(table([]string{"Metric", "Value"}, [][]string{
		{"Scanned nodes", fmt.Sprint(fs.ScannedNodes)},
		{"Scan limit reached", fmt.Sprint(fs.ScanLimitReached)},
		{"Estimated records", fmt.Sprint(fs.EstimatedRecords)},
		{"Max depth", fmt.Sprint(fs.MaxDepth)},
		{"Unique key names", fmt.Sprint(fs.UniqueKeyPatterns)},
	}))

	var formatRows [][]string
	for _, fc := range report.Formats {
		formatRows = append(formatRows, []string{string(fc.Format), fmt.Sprint(fc.Found), fmt.Sprint(fc.Count)})
	}
	body.AppendChild(element(atom.H2, nil, text("Formats")))
	body.AppendChild(table([]string{"Format", "Found", "Count"}, formatRows))

	f := report.FilterStats
	body.AppendChild(element(atom.H2, nil, text("Candidates")))
	body.AppendChild(table([]string{"Outcome", "Count"}, [][]string{
		{"Total", fmt.Sprint(f.TotalCandidates)},
		{"Extracted", fmt.Sprint(f.Extracted)},
		{"Invalid coordinates", fmt.Sprint(f.InvalidCoords)},
		{"No timestamp", fmt.Sprint(f.NoTimestamp)},
		{"Zero or negative timestamp", fmt.Sprint(f.NonPositiveTimestamp)},
		{"Unreadable time fields", fmt.Sprint(f.InvalidTimeFields)},
	}))

	if len(report.Rejections) > 0 {
		var rows [][]string
		for _, rej := range report.Rejections {
			rows = append(rows, []string{string(rej.Stage), rej.Path, rej.Message})
		}
		body.AppendChild(element(atom.H2, nil, text("Rejections")))
		body.AppendChild(table([]string{"Stage", "Path", "Reason"}, rows))
	}

	recs := element(atom.Ul, nil)
	for _, rec := range report.Recommendations {
		recs.AppendChild(element(atom.Li, nil, text(rec)))
	}
	body.AppendChild(element(atom.H2, nil, text("Recommendations")))
	body.AppendChild(recs)

	if report.RootShape != nil {
		var outline strings.Builder
		writeShape(&outline, "$", report.RootShape, 0)
		body.AppendChild(element(atom.H2, nil, text("Structure")))
		body.AppendChild(element(atom.Pre, nil, text(outline.String())))
	}

	head := element(atom.Head, nil,
		element(atom.Meta, attrs("charset", "utf-8")),
		element(atom.Title, nil, text("geotrail diagnostic report")),
		element(atom.Style, nil, text(pageStyle)),
	)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(element(atom.Html, attrs("lang", "en"), head, body))

	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render HTML: %w", err)
	}
	return nil
}

const pageStyle = `body{font-family:system-ui,sans-serif;max-width:60rem;margin:2rem auto;padding:0 1rem}
table{border-collapse:collapse;margin-bottom:1rem}td,th{border:1px solid #ccc;padding:.25rem .5rem;text-align:left}
.notice{background:#eef6e6;padding:.5rem}pre{background:#f4f5f6;padding:.5rem;overflow:auto}`

func element(a atom.Atom, attr []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attr}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

func table(header []string, rows [][]string) *html.Node {
	head := element(atom.Tr, nil)
	for _, h := range header {
		head.AppendChild(element(atom.Th, nil, text(h)))
	}
	t := element(atom.Table, nil, element(atom.Thead, nil, head))
	tbody := element(atom.Tbody, nil)
	for _, row := range rows {
		tr := element(atom.Tr, nil)
		for _, cell := range row {
			tr.AppendChild(element(atom.Td, nil, text(cell)))
		}
		tbody.AppendChild(tr)
	}
	t.AppendChild(tbody)
	return t
}

// FormatForDownload is the full report behind a safety header
func FormatForDownload(report *model.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	header := "# geotrail diagnostic report\n" +
		"# =====================================\n" +
		"# " + safetyNotice + "\n" +
		"# =====================================\n\n"
	return header + string(data) + "\n", nil
}

type clipboardSummary struct {
	Version         string                  `json:"version"`
	GeneratedAt     string                  `json:"generated_at"`
	Stats           model.FileStats         `json:"stats"`
	Formats         []model.FormatCount     `json:"formats"`
	Errors          int                     `json:"errors"`
	ErrorSummary    []model.RejectionRecord `json:"error_summary"`
	Recommendations []string                `json:"recommendations"`
}

// FormatForClipboard is a short summary: found formats and the first
// five rejections only.
func FormatForClipboard(report *model.Report) (string, error) {
	summary := clipboardSummary{
		Version:         report.Version,
		GeneratedAt:     report.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		Stats:           report.FileStats,
		Formats:         []model.FormatCount{},
		Errors:          len(report.Rejections),
		ErrorSummary:    report.Rejections[:min(5, len(report.Rejections))],
		Recommendations: report.Recommendations,
	}
	for _, fc := range report.Formats {
		if fc.Found {
			summary.Formats = append(summary.Formats, fc)
		}
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return "geotrail diagnostic report\n" +
		"=====================================\n" +
		"No location or personal data included.\n\n" +
		string(data) + "\n", nil
}

// RenderSummary prints a styled report overview to the terminal
func (r *Renderer) RenderSummary(report *model.Report) {
	f := report.FilterStats

	lines := []string{
		titleStyle.Render("Diagnostic report"),
		fmt.Sprintf("%s %d (limit reached: %t)", labelStyle.Render("Nodes scanned:"), report.FileStats.ScannedNodes, report.FileStats.ScanLimitReached),
		fmt.Sprintf("%s %d of %d candidates", labelStyle.Render("Extracted:"), f.Extracted, f.TotalCandidates),
	}

	var found []string
	for _, fc := range report.Formats {
		if fc.Found {
			found = append(found, fmt.Sprintf("%s (%d)", fc.Format, fc.Count))
		}
	}
	if len(found) == 0 {
		lines = append(lines, errStyle.Render("No supported format found"))
	} else {
		lines = append(lines, labelStyle.Render("Formats:")+" "+strings.Join(found, ", "))
	}

	if n := f.InvalidCoords + f.NoTimestamp + f.NonPositiveTimestamp; n > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("Rejected: %d bad coordinates, %d without timestamp, %d non-positive timestamp",
			f.InvalidCoords, f.NoTimestamp, f.NonPositiveTimestamp)))
	}
	for _, rec := range report.Recommendations {
		lines = append(lines, "• "+rec)
	}

	fmt.Fprintln(r.out, boxStyle.Render(strings.Join(lines, "\n")))
}

// RenderStats prints a styled extraction overview to the terminal
func (r *Renderer) RenderStats(meta SourceMeta, s model.TimelineStats, cached bool) {
	lines := []string{
		titleStyle.Render("Timeline"),
		fmt.Sprintf("%s %s", labelStyle.Render("File:"), meta.Path),
		fmt.Sprintf("%s %s", labelStyle.Render("Points:"), stats.FormatLargeNumber(s.TotalPoints)),
		fmt.Sprintf("%s %s", labelStyle.Render("Distance:"), stats.FormatDistance(float64(s.TotalDistanceKM))),
		fmt.Sprintf("%s %.2f× around the Earth, %.2f%% of the way to the Moon", labelStyle.Render("Scale:"), s.EarthCircumferences, s.MoonDistancePercent),
		fmt.Sprintf("%s %.1f", labelStyle.Render("Points per day:"), s.AveragePointsPerDay),
	}
	if s.LongestTrip != nil {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Longest hop:"), stats.FormatDistance(float64(s.LongestTrip.DistanceKM))))
	}
	for _, y := range s.YearlyBreakdown {
		lines = append(lines, fmt.Sprintf("  %d: %s points, %s", y.Year, stats.FormatLargeNumber(y.Points), stats.FormatDistance(float64(y.DistanceKM))))
	}
	if cached {
		lines = append(lines, warnStyle.Render("(cached result)"))
	}

	fmt.Fprintln(r.out, boxStyle.Render(strings.Join(lines, "\n")))
}

func writeFile(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

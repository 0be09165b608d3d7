package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/metrics/export/internaldefs"
)

// Source is what the exporter reads on every scrape. *goMFA.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() goMFA.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in the Prometheus text format.
type Exporter struct {
	source Source
}

func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text. It is empty when metrics are
// disabled and nothing has been dropped.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeHeader(&b, def.Name, def.Help, "counter")
		writeSample(&b, def.Name, "", snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))

		writeHeader(&b, def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			writeSample(&b, def.Name+"_bucket", `le="`+le+`"`, cumulative[i])
		}
		writeSample(&b, def.Name+"_count", "", cumulative[len(cumulative)-1])
		// the engine keeps bucket counts only
		writeSample(&b, def.Name+"_sum", "", 0)
	}

	writeHeader(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	writeSample(&b, internaldefs.AuditDroppedName, "", dropped)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, labels string, value uint64) {
	b.WriteString(name)
	if labels != "" {
		b.WriteByte('{')
		b.WriteString(labels)
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}

package retro

import (
	"context"

	"github.com/grailbio/base/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// WriteMetrics writes stats, per sample and summed, to path in the
// Prometheus text format, for node_exporter's textfile collector.
func WriteMetrics(ctx context.Context, path string, samples []string, perSample []Stats) (err error) {
	reg := prometheus.NewRegistry()
	vec := func(name, help string) *prometheus.GaugeVec {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gripper2",
			Name:      name,
			Help:      help,
		}, []string{"sample"})
		reg.MustRegister(g)
		return g
	}
	reads := vec("reads", "Records read from the BAM.")
	filtered := vec("filtered_reads", "Records skipped for flags or mapping quality.")
	exon := vec("exon_reads", "Usable records overlapping an exon.")
	junction := vec("junction_reads", "Exon-junction reads.")
	spanning := vec("spanning_pairs", "Pairs spanning exons of one gene.")
	discordant := vec("discordant_anchors", "Exon anchors with a distant mate.")
	dups := vec("duplicates", "Evidence records dropped as duplicates.")
	cands := vec("candidates", "Candidate insertion sites.")
	passing := vec("passing", "Candidates passing all filters.")

	var total Stats
	set := func(sample string, s Stats) {
		reads.WithLabelValues(sample).Set(float64(s.Reads))
		filtered.WithLabelValues(sample).Set(float64(s.Filtered))
		exon.WithLabelValues(sample).Set(float64(s.ExonReads))
		junction.WithLabelValues(sample).Set(float64(s.JunctionReads))
		spanning.WithLabelValues(sample).Set(float64(s.SpanningPairs))
		discordant.WithLabelValues(sample).Set(float64(s.DiscordantAnchors))
		dups.WithLabelValues(sample).Set(float64(s.Duplicates))
		cands.WithLabelValues(sample).Set(float64(s.Candidates))
		passing.WithLabelValues(sample).Set(float64(s.Passing))
	}
	for i, s := range perSample {
		set(samples[i], s)
		total = total.Merge(s)
	}
	set("all", total)

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := out.Writer(ctx)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

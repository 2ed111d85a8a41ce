package annotation_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamewing/gripper2/annotation"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/testutil/h"
)

// Two-transcript gene GENE1 on chr1 with exons (1-based) 1001-1100,
// 2001-2100, 3001-3100 and an alternate first exon 1051-1150; single-exon
// gene SOLO; readthrough GENE1-GENE2; minus-strand GENE3 on chr2.
var testGTF = strings.Join([]string{
	"##description: test",
	"chr1\tHAVANA\tgene\t1001\t3100\t.\t+\t.\tgene_id \"G1\"; gene_type \"protein_coding\"; gene_name \"GENE1\";",
	"chr1\tHAVANA\ttranscript\t1001\t3100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; transcript_type \"protein_coding\"; transcript_name \"GENE1-201\";",
	"chr1\tHAVANA\texon\t1001\t1100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; transcript_type \"protein_coding\"; tag \"basic\"; tag \"CCDS\";",
	"chr1\tHAVANA\texon\t2001\t2100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; transcript_type \"protein_coding\";",
	"chr1\tHAVANA\texon\t3001\t3100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; transcript_type \"protein_coding\";",
	"chr1\tHAVANA\ttranscript\t1051\t3100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T2\"; transcript_type \"retained_intron\";",
	"chr1\tHAVANA\texon\t1051\t1150\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T2\"; transcript_type \"retained_intron\";",
	"chr1\tHAVANA\texon\t3001\t3100\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T2\"; transcript_type \"retained_intron\";",
	"chr1\tHAVANA\tgene\t5001\t6000\t.\t+\t.\tgene_id \"G2\"; gene_type \"protein_coding\"; gene_name \"SOLO\";",
	"chr1\tHAVANA\ttranscript\t5001\t6000\t.\t+\t.\tgene_id \"G2\"; transcript_id \"T3\"; transcript_type \"protein_coding\";",
	"chr1\tHAVANA\texon\t5001\t6000\t.\t+\t.\tgene_id \"G2\"; transcript_id \"T3\"; transcript_type \"protein_coding\";",
	"chr1\tHAVANA\tgene\t1001\t9000\t.\t+\t.\tgene_id \"G4\"; gene_type \"protein_coding\"; gene_name \"GENE1-GENE2\";",
	"chr1\tHAVANA\ttranscript\t1001\t9000\t.\t+\t.\tgene_id \"G4\"; transcript_id \"T5\"; transcript_type \"protein_coding\";",
	"chr1\tHAVANA\texon\t1001\t1100\t.\t+\t.\tgene_id \"G4\"; transcript_id \"T5\"; transcript_type \"protein_coding\";",
	"chr1\tHAVANA\texon\t8001\t9000\t.\t+\t.\tgene_id \"G4\"; transcript_id \"T5\"; transcript_type \"protein_coding\";",
	"chr2\tENSEMBL\tgene\t101\t700\t.\t-\t.\tgene_id \"G3\"; gene_biotype \"protein_coding\"; gene_name \"GENE3\";",
	"chr2\tENSEMBL\ttranscript\t101\t700\t.\t-\t.\tgene_id \"G3\"; transcript_id \"T4\"; transcript_biotype \"protein_coding\";",
	"chr2\tENSEMBL\texon\t601\t700\t.\t-\t.\tgene_id \"G3\"; transcript_id \"T4\"; transcript_biotype \"protein_coding\";",
	"chr2\tENSEMBL\texon\t101\t200\t.\t-\t.\tgene_id \"G3\"; transcript_id \"T4\"; transcript_biotype \"protein_coding\";",
	"",
}, "\n")

func writeGTF(t *testing.T, dir, data string) string {
	path := filepath.Join(dir, "test.gtf")
	assert.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func readTestGTF(t *testing.T, opts annotation.GTFOpts) []*annotation.Gene {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	genes, err := annotation.ReadGTF(context.Background(), writeGTF(t, dir, testGTF), opts)
	assert.NoError(t, err)
	return genes
}

func geneNames(genes []*annotation.Gene) []string {
	var names []string
	for _, g := range genes {
		names = append(names, g.Name)
	}
	return names
}

func TestReadGTF(t *testing.T) {
	genes := readTestGTF(t, annotation.DefaultGTFOpts)
	expect.That(t, geneNames(genes), h.ElementsAre("GENE1", "GENE3"))

	g1 := genes[0]
	expect.EQ(t, g1.ID, "G1")
	expect.EQ(t, g1.Chrom, "chr1")
	expect.EQ(t, g1.Start, 1000)
	expect.EQ(t, g1.End, 3100)
	expect.EQ(t, g1.Strand, byte('+'))
	expect.EQ(t, len(g1.Transcripts), 2)
	expect.EQ(t, g1.Exons(), []annotation.Exon{{1000, 1150}, {2000, 2100}, {3000, 3100}})
	var js [][2]int
	for _, j := range g1.Junctions() {
		js = append(js, [2]int{j.Left.End, j.Right.Start})
	}
	expect.EQ(t, js, [][2]int{{1100, 2000}, {1150, 3000}, {2100, 3000}})
	expect.EQ(t, g1.Junctions()[0].IntronLen(), 900)

	g3 := genes[1]
	expect.EQ(t, g3.Type, "protein_coding")
	expect.EQ(t, g3.Strand, byte('-'))
	expect.EQ(t, g3.Transcripts[0].Exons, []annotation.Exon{{100, 200}, {600, 700}})
}

func TestReadGTFOpts(t *testing.T) {
	opts := annotation.DefaultGTFOpts
	opts.MinExons = 1
	opts.KeepReadthrough = true
	expect.That(t, geneNames(readTestGTF(t, opts)), h.ElementsAre("GENE1", "SOLO", "GENE3", "GENE1-GENE2"))

	opts = annotation.DefaultGTFOpts
	opts.CodingOnly = true
	genes := readTestGTF(t, opts)
	expect.That(t, geneNames(genes), h.ElementsAre("GENE1", "GENE3"))
	// T2 is a retained intron transcript, so the alternate exon is gone.
	expect.EQ(t, genes[0].Exons(), []annotation.Exon{{1000, 1100}, {2000, 2100}, {3000, 3100}})
}

func TestReadGTFErrors(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	bad := "chr1\tX\ttranscript\t1\t10\t.\t+\t.\tgene_id \"NOPE\"; transcript_id \"T\";\n"
	_, err := annotation.ReadGTF(ctx, writeGTF(t, dir, bad), annotation.DefaultGTFOpts)
	assert.Regexp(t, err, "unknown gene NOPE")

	bad = "chr1\tX\tgene\t1\t10\t.\t+\t.\tgene_id \"G\";\n" +
		"chr1\tX\texon\t1\t10\t.\t+\t.\tgene_id \"G\"; transcript_id \"T\";\n"
	_, err = annotation.ReadGTF(ctx, writeGTF(t, dir, bad), annotation.DefaultGTFOpts)
	assert.Regexp(t, err, "unknown transcript T")

	_, err = annotation.ReadGTF(ctx, filepath.Join(dir, "missing.gtf"), annotation.DefaultGTFOpts)
	expect.NotNil(t, err)
}

func TestDB(t *testing.T) {
	opts := annotation.DefaultGTFOpts
	opts.KeepReadthrough = true
	db, err := annotation.NewDB(readTestGTF(t, opts))
	assert.NoError(t, err)

	expect.EQ(t, db.GeneByName("GENE3").ID, "G3")
	expect.EQ(t, db.GeneByID("G1").Name, "GENE1")
	expect.True(t, db.GeneByName("SOLO") == nil)

	hits := db.ExonsOverlapping("chr1", 1090, 1110)
	assert.EQ(t, len(hits), 2)
	expect.EQ(t, hits[0].Gene.Name, "GENE1")
	expect.EQ(t, hits[0].Rank, 0)
	expect.EQ(t, hits[1].Gene.Name, "GENE1-GENE2")
	expect.EQ(t, len(db.ExonsOverlapping("chr1", 1150, 2000)), 0)
	expect.EQ(t, len(db.ExonsOverlapping("chr1", 2099, 2100)), 1)
	expect.EQ(t, len(db.ExonsOverlapping("chr3", 0, 100000)), 0)

	js := db.JunctionsEndingAt("chr1", 1101, 2)
	assert.EQ(t, len(js), 2)
	expect.EQ(t, js[0].Right.Start, 2000)
	expect.EQ(t, js[1].Right.Start, 8000)
	js = db.JunctionsStartingAt("chr1", 2999, 1)
	assert.EQ(t, len(js), 2)
	expect.EQ(t, len(db.JunctionsStartingAt("chr1", 2500, 10)), 0)

	expect.True(t, annotation.NearGene(db.GeneByName("GENE1"), "chr1", 3500, 500))
	expect.False(t, annotation.NearGene(db.GeneByName("GENE1"), "chr1", 3600, 500))
	expect.False(t, annotation.NearGene(db.GeneByName("GENE1"), "chr2", 1500, 500))

	expect.EQ(t, db.GeneSpans(100), []annotation.Span{{"chr1", 900, 9100}, {"chr2", 0, 800}})
}

func TestReadGTFNoHeader(t *testing.T) {
	// The first record must survive format detection on uncompressed input.
	data := strings.SplitN(testGTF, "\n", 2)[1]
	assert.True(t, len(strings.SplitN(data, "\n", 2)[0]) < 128)
	assert.True(t, len(data) > 128)
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	genes, err := annotation.ReadGTF(context.Background(), writeGTF(t, dir, data), annotation.DefaultGTFOpts)
	assert.NoError(t, err)
	expect.That(t, geneNames(genes), h.ElementsAre("GENE1", "GENE3"))
	expect.EQ(t, genes[0].Start, 1000)
	expect.EQ(t, genes[0].Exons(), []annotation.Exon{{1000, 1150}, {2000, 2100}, {3000, 3100}})
}

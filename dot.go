package flowgraph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// dotGraphID is the identifier of the exported digraph.
const dotGraphID = "flow_graph"

var dotIDReplacer = strings.NewReplacer("-", "_", "/", "_")

// Node ids are prefixed by node type so that a processor and an exchange
// with the same name stay distinct.
func processorNodeID(name string) string {
	return "proc_" + dotIDReplacer.Replace(name)
}

func exchangeNodeID(name string) string {
	return "exch_" + dotIDReplacer.Replace(name)
}

// WriteDOT writes the dataflow as a GraphViz digraph. Processors are boxes
// and exchanges hexagons. A sink processor points at its exchange and an
// exchange points at its source processors.
func (d *Dataflow) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph %s {\n", dotGraphID)
	for proc := range d.Processors() {
		fmt.Fprintf(bw, "    %s[label=%q][shape=\"box\"];\n", processorNodeID(proc.String()), proc.String())
	}
	for key := range d.Exchanges() {
		fmt.Fprintf(bw, "    %s[label=%q][shape=\"hexagon\"];\n", exchangeNodeID(key.String()), key.String())
	}
	for key, conn := range d.Connections() {
		for proc := range conn.Sinks() {
			fmt.Fprintf(bw, "    %s -> %s[label=\"\"];\n", processorNodeID(proc.String()), exchangeNodeID(key.String()))
		}
		for proc := range conn.Sources() {
			fmt.Fprintf(bw, "    %s -> %s[label=\"\"];\n", exchangeNodeID(key.String()), processorNodeID(proc.String()))
		}
	}
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}

// SaveDOT writes the dataflow as a GraphViz file at path.
func (d *Dataflow) SaveDOT(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return d.WriteDOT(f)
}

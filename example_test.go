package flowgraph_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/zero-day-ai/flowgraph"
	"github.com/zero-day-ai/flowgraph/ns"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ExampleOpen() {
	df, err := flowgraph.Open(context.Background(), "testdata/fanout.json",
		flowgraph.WithLogger(quietLogger()),
	)
	if err != nil {
		log.Fatal(err)
	}

	for proc := range df.Processors() {
		outputs, _ := df.Outputs(proc)
		fmt.Println(proc, "->", outputs)
	}

	// Output:
	// camera -> [frames]
	// detector -> [events archive]
	// recorder -> []
	// idle -> []
	// myproc -> [outer/frames]
}

func ExampleDataflow_ResolveSender() {
	df, err := flowgraph.Open(context.Background(), "testdata/fanout.json",
		flowgraph.WithLogger(quietLogger()),
	)
	if err != nil {
		log.Fatal(err)
	}

	detector := ns.MustIdent("detector")
	_, err = df.ResolveSender(detector)
	if errors.Is(err, flowgraph.ErrOutputNotSpecified) {
		fmt.Println(err)
	}

	cfg, err := df.ResolveSenderTo(detector, ns.MustKey("events"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(cfg)

	// Output:
	// flowgraph: ResolveSender (ambiguous): the output exchange from processor `detector` must be specified [context: map[candidates:[events archive]]]
	// null
}

func ExampleDataflow_WriteDOT() {
	df, err := flowgraph.Open(context.Background(), "testdata/pubsub.json",
		flowgraph.WithLogger(quietLogger()),
	)
	if err != nil {
		log.Fatal(err)
	}

	if err := df.WriteDOT(os.Stdout); err != nil {
		log.Fatal(err)
	}

	// Output:
	// digraph flow_graph {
	//     proc_publisher[label="publisher"][shape="box"];
	//     proc_consumer[label="consumer"][shape="box"];
	//     exch_channel[label="channel"][shape="hexagon"];
	//     proc_consumer -> exch_channel[label=""];
	//     exch_channel -> proc_publisher[label=""];
	// }
}

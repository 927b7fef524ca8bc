// mvbench_mock_server serves the model-serving contract from an in-memory
// registry, on both transport bindings at once. It exists so the benchmark
// and the conformance suite can run without a real inference server.
package main

import (
	"flag"
	"log"
	"net"
	"net/http"

	"github.com/aiserving/mvbench/serving"
	"github.com/aiserving/mvbench/serving/refserver"
)

var (
	grpcAddr string
	restAddr string
	model    string
)

func init() {
	flag.StringVar(&grpcAddr, "grpc-addr", "127.0.0.1:8500", "Address to serve the RPC binding on")
	flag.StringVar(&restAddr, "rest-addr", "127.0.0.1:8501", "Address to serve the REST binding on")
	flag.StringVar(&model, "model", "face_detection_multi_version", "Model name to serve")
	flag.Parse()
}

func main() {
	srv := refserver.New()

	// Two AVAILABLE versions with distinct output shapes, so default-version
	// resolution is observable from the outside.
	srv.AddModelVersion(model, 1, refserver.ModelSpec{
		Inputs: map[string]serving.TensorMetadata{
			"data": {DataType: "DT_FLOAT", Shape: []int64{1, 3, 300, 300}},
		},
		Outputs: map[string]serving.TensorMetadata{
			"detection_out": {DataType: "DT_FLOAT", Shape: []int64{1, 1, 200, 7}},
		},
	})
	srv.AddModelVersion(model, 2, refserver.ModelSpec{
		Inputs: map[string]serving.TensorMetadata{
			"data": {DataType: "DT_FLOAT", Shape: []int64{1, 3, 300, 300}},
		},
		Outputs: map[string]serving.TensorMetadata{
			"detection_out": {DataType: "DT_FLOAT", Shape: []int64{1, 1, 100, 7}},
		},
	})

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalln("cannot listen on", grpcAddr, ":", err)
	}
	srv.ServeGRPC(lis)
	log.Printf("serving RPC binding on %s", grpcAddr)

	log.Printf("serving REST binding on %s", restAddr)
	if err := http.ListenAndServe(restAddr, srv.Handler()); err != nil {
		log.Fatalln("REST server failed:", err)
	}
}

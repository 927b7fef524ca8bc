// mvbench_run_inference benchmarks a model-serving endpoint over one of
// the two transport bindings. It has no knowledge of the internals of the
// endpoint.
package main

import (
	"crypto/tls"
	"flag"
	"log"
	"strconv"
	"strings"

	"github.com/aiserving/mvbench/inference"
	"github.com/aiserving/mvbench/secure"
	"github.com/aiserving/mvbench/serving"
	servinggrpc "github.com/aiserving/mvbench/serving/grpc"
	servingrest "github.com/aiserving/mvbench/serving/rest"
)

// Program option vars:
var (
	transport     string
	host          string
	model         string
	modelVersion  int64
	inputName     string
	inputShapeRaw string

	serverCertPath string
	clientKeyPath  string
	clientCAPath   string
	tlsServerName  string
)

// Global vars:
var (
	runner *inference.BenchmarkRunner
)

// Parse args:
func init() {
	runner = inference.NewBenchmarkRunner()

	flag.StringVar(&transport, "transport", "grpc", "Transport binding to benchmark: grpc or rest")
	flag.StringVar(&host, "host", "127.0.0.1:8500", "Serving endpoint host address and port")
	flag.StringVar(&model, "model", "", "Model name")
	flag.Int64Var(&modelVersion, "model-version", 0, "Model version, 0 = default (highest available) version")
	flag.StringVar(&inputName, "input-name", "input", "Input tensor name")
	flag.StringVar(&inputShapeRaw, "input-shape", "1,3,224,224", "Comma separated input tensor shape")
	flag.StringVar(&serverCertPath, "server-cert", "", "Path to the server certificate (PEM); enables TLS")
	flag.StringVar(&clientKeyPath, "client-key", "", "Path to the client private key (PEM), for mutual TLS")
	flag.StringVar(&clientCAPath, "client-ca", "", "Path to the client certificate chain (PEM), for mutual TLS")
	flag.StringVar(&tlsServerName, "tls-server-name", "", "Server name override for TLS verification")

	flag.Parse()
}

func main() {
	if model == "" {
		log.Fatalln("a model name is required (-model)")
	}

	shape, err := parseShape(inputShapeRaw)
	if err != nil {
		log.Fatalf("invalid input shape %q: %v\n", inputShapeRaw, err)
	}

	certs, err := secure.LoadCertificates(serverCertPath, clientKeyPath, clientCAPath)
	if err != nil {
		log.Fatalln("cannot load TLS material:", err)
	}

	var version *int64
	if modelVersion > 0 {
		version = serving.Version(modelVersion)
	}

	input := serving.Tensor{Shape: shape}
	input.Values = make([]float32, input.NumElements())
	for i := range input.Values {
		input.Values[i] = 1
	}
	request := &serving.InferRequest{
		Model:   model,
		Version: version,
		Inputs:  map[string]serving.Tensor{inputName: input},
	}
	newRequest := func(int, uint64) *serving.InferRequest { return request }

	var label string
	var newClient inference.ClientFactory

	switch transport {
	case "grpc":
		label = "RPC inference"
		newClient = func() (serving.Client, error) {
			creds, err := certs.TransportCredentials(tlsServerName)
			if err != nil {
				return nil, err
			}
			return servinggrpc.NewClient(host, creds, runner.RequestTimeout())
		}
	case "rest":
		label = "REST inference"
		newClient = func() (serving.Client, error) {
			var tlsConfig *tls.Config
			if !certs.Empty() {
				cfg, err := certs.TLSConfig(tlsServerName)
				if err != nil {
					return nil, err
				}
				tlsConfig = cfg
			}
			return servingrest.NewClient(host, tlsConfig, runner.RequestTimeout()), nil
		}
	default:
		log.Fatalf("unknown transport %q, expected grpc or rest\n", transport)
	}

	if err := runner.Run(label, newClient, newRequest); err != nil {
		log.Fatalln("benchmark failed:", err)
	}
}

func parseShape(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	shape := make([]int64, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		shape = append(shape, d)
	}
	return shape, nil
}

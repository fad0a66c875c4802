package kv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/mKV/cmd/util"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for mKV servers",
		Long: util.WrapString("Runs parallel benchmarks of the key value operations and measures the publish to delivery latency of the pub/sub layer. " +
			"Available benchmarks: set, set-large, get, mget, delete, exists, exists-not, mixed, pubsub"),
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfTable            = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
	perfPercentiles      = []float64{0.5, 0.9, 0.99}
	perfLargeValue       common.Value
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	// every run uses its own table so concurrent runs do not interfere
	perfTable = "__perf-" + uuid.NewString()

	return nil
}

// perfTest is a single parallel benchmark. setup runs before and cleanup
// after every benchmark round, op is called with a per goroutine counter.
type perfTest struct {
	name    string
	setup   func(keys []string) error
	op      func(keys []string, counter int) error
	cleanup func(keys []string)
}

// perfResult combines the benchmark result with the latency distribution
// of the last benchmark round
type perfResult struct {
	name   string
	result testing.BenchmarkResult
	timer  gometrics.Timer
}

func (r perfResult) skipped() bool {
	return r.result.N == 0
}

var perfTests = []perfTest{
	{
		name: "set",
		op: func(keys []string, counter int) error {
			_, err := rpcClient.Set(perfTable, keys[counter%len(keys)], common.StringValue("test"))
			return err
		},
		cleanup: deleteKeys,
	},
	{
		name: "set-large",
		setup: func(_ []string) error {
			perfLargeValue = common.BinaryValue(make([]byte, perfLargeValueSizeKB*1024))
			return nil
		},
		op: func(keys []string, counter int) error {
			_, err := rpcClient.Set(perfTable, keys[counter%len(keys)], perfLargeValue)
			return err
		},
		cleanup: deleteKeys,
	},
	{
		name:  "get",
		setup: setKeys,
		op: func(keys []string, counter int) error {
			_, err := rpcClient.Get(perfTable, keys[counter%len(keys)])
			return err
		},
		cleanup: deleteKeys,
	},
	{
		name:  "mget",
		setup: setKeys,
		op: func(keys []string, counter int) error {
			i := counter % len(keys)
			_, err := rpcClient.MGet(perfTable, keys[i], keys[(i+1)%len(keys)], keys[(i+2)%len(keys)])
			return err
		},
		cleanup: deleteKeys,
	},
	{
		name:  "delete",
		setup: setKeys,
		op: func(keys []string, counter int) error {
			_, err := rpcClient.Del(perfTable, keys[counter%len(keys)])
			return err
		},
		cleanup: deleteKeys,
	},
	{
		name:  "exists",
		setup: setKeys,
		op: func(keys []string, counter int) error {
			_, err := rpcClient.Exists(perfTable, keys[counter%len(keys)])
			return err
		},
		cleanup: deleteKeys,
	},
	{
		name: "exists-not",
		op: func(keys []string, counter int) error {
			_, err := rpcClient.Exists(perfTable, keys[counter%len(keys)])
			return err
		},
	},
	{
		name:  "mixed",
		setup: setKeys,
		op: func(keys []string, counter int) error {
			var err error
			key := keys[counter%len(keys)]
			switch counter % 4 {
			case 0: // set
				_, err = rpcClient.Set(perfTable, key, common.StringValue("test"))
			case 1: // get (the key may have been deleted)
				if _, err = rpcClient.Get(perfTable, key); errors.Is(err, common.ErrNotFound) {
					err = nil
				}
			case 2: // delete
				_, err = rpcClient.Del(perfTable, key)
			case 3: // exists
				_, err = rpcClient.Exists(perfTable, key)
			}
			return err
		},
		cleanup: deleteKeys,
	},
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for mKV servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(clientConfig.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("staring tests...")

	results := make([]perfResult, 0, len(perfTests)+1)
	for _, test := range perfTests {
		result := runPerfTest(test)
		results = append(results, result)
		printResult(result)
	}

	pubsubResult := runPubSubTest()
	results = append(results, pubsubResult)
	printResult(pubsubResult)

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, clientConfig); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest runs a single parallel benchmark and records the latency of every operation
func runPerfTest(test perfTest) perfResult {
	res := perfResult{name: test.name, timer: gometrics.NilTimer{}}
	if shouldSkip(test.name) {
		return res
	}

	keys := getKeys(test.name)

	res.result = testing.Benchmark(func(b *testing.B) {
		timer := gometrics.NewTimer()
		res.timer = timer

		if test.setup != nil {
			if err := test.setup(keys); err != nil {
				log.Printf("(%s) - error during setup: %v\n", test.name, err)
			}
		}

		// cleanup
		if test.cleanup != nil {
			b.Cleanup(func() { test.cleanup(keys) })
		}

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				err := test.op(keys, counter)
				timer.UpdateSince(start)
				if err != nil {
					log.Printf("(%s) - error performing operation: %v\n", test.name, err)
				}
				counter++
			}
		})
	})

	return res
}

// runPubSubTest publishes b.N timestamps on a dedicated topic and records the
// time until each one is delivered to a subscriber
func runPubSubTest() perfResult {
	res := perfResult{name: "pubsub", timer: gometrics.NilTimer{}}
	if shouldSkip(res.name) {
		return res
	}

	topic := perfTable + "-pubsub"

	res.result = testing.Benchmark(func(b *testing.B) {
		timer := gometrics.NewTimer()
		res.timer = timer

		sub, err := rpcClient.Subscribe(topic)
		if err != nil {
			b.Fatalf("(pubsub) - error subscribing: %v", err)
		}
		b.Cleanup(func() {
			if err := rpcClient.Unsubscribe(topic, sub.ID); err != nil {
				log.Printf("(pubsub) - error unsubscribing: %v\n", err)
			}
			_ = sub.Close()
		})

		received := make(chan error, 1)
		go func() {
			for i := 0; i < b.N; i++ {
				msg, err := sub.Next()
				if err != nil {
					received <- err
					return
				}
				if len(msg.Values) == 1 {
					timer.Update(time.Since(time.Unix(0, msg.Values[0].Int)))
				}
			}
			received <- nil
		}()

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			if err := rpcClient.Publish(topic, common.IntValue(time.Now().UnixNano())); err != nil {
				log.Printf("(pubsub) - error publishing: %v\n", err)
			}
		}

		if err := <-received; err != nil {
			log.Printf("(pubsub) - error receiving: %v\n", err)
		}
	})

	return res
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	return slices.Contains(perfSkip, test)
}

// creates the test keys of a benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return keys
}

// setKeys stores a value for all keys in a single request
func setKeys(keys []string) error {
	pairs := make([]common.Kvpair, len(keys))
	for i, key := range keys {
		pairs[i] = common.NewKvpair(key, common.StringValue("test"))
	}
	_, err := rpcClient.MSet(perfTable, pairs...)
	return err
}

// deleteKeys removes all keys in a single request
func deleteKeys(keys []string) {
	if _, err := rpcClient.MDel(perfTable, keys...); err != nil {
		log.Printf("error deleting keys: %v\n", err)
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(r perfResult) {
	if r.skipped() {
		fmt.Printf("%-20sskipped\n", r.name)
		return
	}

	nsPerOp := math.Max(float64(r.result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	ps := r.timer.Percentiles(perfPercentiles)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p90=%s p99=%s max=%s\n",
		r.name, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]), time.Duration(r.timer.Max()))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"P50Ns", "P90Ns", "P99Ns", "MaxNs",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, r := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if r.skipped() {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(r.result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		ps := r.timer.Percentiles(perfPercentiles)

		row := []string{
			r.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(r.timer.Max(), 10),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.name, err)
		}
	}

	return nil
}

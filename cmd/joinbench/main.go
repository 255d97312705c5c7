package main

import (
	"fmt"
	"time"

	streamjoin "github.com/NerdMeNot/galleon-streamjoin"
)

func main() {
	n := 1_000_000
	iterations := 5

	fmt.Println("=== Streaming Equi-Join Benchmark ===")
	fmt.Printf("Left rows: %d, Right rows: %d, Iterations: %d\n\n", n, n, iterations)

	leftK := make([]int64, n)
	leftV := make([]string, n)
	for i := range leftK {
		leftK[i] = int64(i)
		leftV[i] = "l"
	}
	rightK := make([]int64, n)
	rightW := make([]string, n)
	for i := range rightK {
		rightK[i] = int64(i)
		rightW[i] = "r"
	}

	leftSchema := mustSchema([]string{"k", "v"}, []streamjoin.DType{streamjoin.Int64, streamjoin.String})
	rightSchema := mustSchema([]string{"k", "w"}, []streamjoin.DType{streamjoin.Int64, streamjoin.String})

	fmt.Println("--- Inner join, maintain_order=None (samples, partitions both sides) ---")
	innerDur := benchmark(iterations, func() time.Duration {
		return runJoin(leftSchema, rightSchema, leftK, leftV, rightK, rightW, streamjoin.DefaultJoinArgs())
	})
	fmt.Printf("Average: %v\n\n", innerDur)

	fmt.Println("--- Left outer join, maintain_order=Left (order-preserving probe) ---")
	leftOuterArgs := streamjoin.JoinArgs{How: streamjoin.LeftOuter, Suffix: "_right", MaintainOrder: streamjoin.MaintainLeft}
	orderedDur := benchmark(iterations, func() time.Duration {
		return runJoin(leftSchema, rightSchema, leftK, leftV, rightK, rightW, leftOuterArgs)
	})
	fmt.Printf("Average: %v\n", orderedDur)
	fmt.Printf("Slowdown vs unordered inner: %.2fx\n", float64(orderedDur)/float64(innerDur))
}

func mustSchema(names []string, dtypes []streamjoin.DType) *streamjoin.Schema {
	s, err := streamjoin.NewSchema(names, dtypes)
	if err != nil {
		panic(err)
	}
	return s
}

func runJoin(leftSchema, rightSchema *streamjoin.Schema, leftK []int64, leftV []string, rightK []int64, rightW []string, args streamjoin.JoinArgs) time.Duration {
	node, err := streamjoin.NewJoinNode(leftSchema, rightSchema, []string{"k"}, []string{"k"}, args)
	if err != nil {
		panic(err)
	}

	leftDF, err := streamjoin.NewFrame(streamjoin.NewColumnInt64("k", leftK), streamjoin.NewColumnString("v", leftV))
	if err != nil {
		panic(err)
	}
	rightDF, err := streamjoin.NewFrame(streamjoin.NewColumnInt64("k", rightK), streamjoin.NewColumnString("w", rightW))
	if err != nil {
		panic(err)
	}

	left := make(chan streamjoin.Morsel, 1)
	right := make(chan streamjoin.Morsel, 1)
	left <- streamjoin.Morsel{DF: leftDF, Seq: 1, SourceToken: streamjoin.NewSourceToken(), ConsumeToken: streamjoin.NewConsumeToken()}
	close(left)
	right <- streamjoin.Morsel{DF: rightDF, Seq: 1, SourceToken: streamjoin.NewSourceToken(), ConsumeToken: streamjoin.NewConsumeToken()}
	close(right)

	start := time.Now()
	out := node.Run(left, right)
	rows := 0
	for m := range out {
		rows += m.DF.Height()
	}
	elapsed := time.Since(start)
	fmt.Printf("  matched %d rows in %v\n", rows, elapsed)
	return elapsed
}

func benchmark(iterations int, fn func() time.Duration) time.Duration {
	fn() // warmup

	var total time.Duration
	for i := 0; i < iterations; i++ {
		total += fn()
	}
	return total / time.Duration(iterations)
}

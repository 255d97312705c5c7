package streamjoin

import "testing"

func testJoinParams(t *testing.T, leftIsBuild bool, args JoinArgs) *JoinParams {
	t.Helper()
	leftSchema := schemaOf(t, []string{"k", "v"}, []DType{Int64, String})
	rightSchema := schemaOf(t, []string{"k", "w"}, []DType{Int64, String})
	leftKeySchema := schemaOf(t, []string{"k"}, []DType{Int64})
	rightKeySchema := schemaOf(t, []string{"k"}, []DType{Int64})

	leftSel, err := payloadSelector(leftSchema, rightSchema, leftKeySchema, true, args)
	if err != nil {
		t.Fatalf("leftSel: %v", err)
	}
	rightSel, err := payloadSelector(rightSchema, leftSchema, rightKeySchema, false, args)
	if err != nil {
		t.Fatalf("rightSel: %v", err)
	}

	return &JoinParams{
		Args:             args,
		LeftSchema:       leftSchema,
		RightSchema:      rightSchema,
		LeftKeyNames:     []string{"k"},
		RightKeyNames:    []string{"k"},
		LeftPayloadSel:   leftSel,
		RightPayloadSel:  rightSel,
		NumPipelines:     2,
		SampleLimit:      DefaultSampleLimit,
		LeftIsBuild:      leftIsBuild,
		LeftIsBuildKnown: true,
		Partitioner:      NewHashPartitioner(2),
	}
}

func TestBuildStatePartitionAndSinkAssignsAllRows(t *testing.T) {
	params := testJoinParams(t, true, DefaultJoinArgs())
	bs := NewBuildState(params, nil)

	df := mkFrame(t, i64col("k", 1, 2, 3, 4), strcol("v", "a", "b", "c", "d"))
	ch := make(chan Morsel, 1)
	ch <- mkMorsel(df, Seq(1))
	close(ch)
	bs.PartitionAndSink(0, ch)

	total := 0
	for _, bucket := range bs.perWorker[0] {
		for _, fr := range bucket.Frames {
			total += fr.DF.Height()
		}
	}
	if total != 4 {
		t.Fatalf("expected all 4 rows assigned across partitions, got %d", total)
	}
}

func TestBuildStateFinalizeBuildsProbeTablePerPartition(t *testing.T) {
	params := testJoinParams(t, true, DefaultJoinArgs())
	bs := NewBuildState(params, nil)

	df := mkFrame(t, i64col("k", 1, 2, 3, 4, 5), strcol("v", "a", "b", "c", "d", "e"))
	ch := make(chan Morsel, 1)
	ch <- mkMorsel(df, Seq(1))
	close(ch)
	bs.PartitionAndSink(0, ch)

	ps := bs.Finalize()
	if len(ps.TablePerPartition) != 2 {
		t.Fatalf("expected 2 partitions (NumPipelines), got %d", len(ps.TablePerPartition))
	}
	total := 0
	for _, pt := range ps.TablePerPartition {
		total += pt.Table.NumKeys()
	}
	if total != 5 {
		t.Errorf("expected all 5 build rows inserted across partitions, got %d", total)
	}
}

func TestBuildStateFinalizeEmptyPartitionGetsEmptyFrame(t *testing.T) {
	params := testJoinParams(t, true, DefaultJoinArgs())
	bs := NewBuildState(params, nil)
	// No rows sunk at all; every partition must still finalize to an empty
	// frame of the correct build-payload schema, not a nil frame.
	ps := bs.Finalize()
	for _, pt := range ps.TablePerPartition {
		if pt.DF == nil {
			t.Fatal("expected a non-nil (possibly empty) dataframe for an empty partition")
		}
		if pt.DF.Height() != 0 {
			t.Errorf("expected 0 rows for an empty partition, got %d", pt.DF.Height())
		}
	}
}

func TestBuildStatePreserveOrderSortsBySeq(t *testing.T) {
	args := DefaultJoinArgs()
	params := testJoinParams(t, true, args)
	params.PreserveOrderBuild = true
	params.Partitioner = NewHashPartitioner(1) // force everything into one partition to check ordering
	bs := NewBuildState(params, nil)

	// Two workers sink frames with seq out of arrival order; finalize must
	// sort each partition's rows by seq before insertion.
	ch0 := make(chan Morsel, 1)
	ch0 <- mkMorsel(mkFrame(t, i64col("k", 2), strcol("v", "second")), Seq(20))
	close(ch0)
	ch1 := make(chan Morsel, 1)
	ch1 <- mkMorsel(mkFrame(t, i64col("k", 1), strcol("v", "first")), Seq(10))
	close(ch1)
	bs.PartitionAndSink(0, ch0)
	bs.PartitionAndSink(1, ch1)

	ps := bs.Finalize()
	pt := ps.TablePerPartition[0]
	if pt.DF.Height() != 2 {
		t.Fatalf("expected 2 rows in the single partition, got %d", pt.DF.Height())
	}
	v0, _ := strRow(pt.DF, "v", 0)
	v1, _ := strRow(pt.DF, "v", 1)
	if v0 != "first" || v1 != "second" {
		t.Errorf("expected rows ordered by seq (first, second), got (%s, %s)", v0, v1)
	}
}

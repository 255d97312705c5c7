package streamjoin

import "testing"

func TestBufferedStreamReinsertDrainsBufferFirst(t *testing.T) {
	b := NewBufferedStream()
	b.Push(mkMorsel(mkFrame(t, i64col("id", 1)), Seq(100)))
	b.Push(mkMorsel(mkFrame(t, i64col("id", 2)), Seq(101)))

	outs := b.Reinsert(1, nil)
	if len(outs) != 1 {
		t.Fatalf("expected 1 output channel, got %d", len(outs))
	}

	var got []Seq
	for m := range outs[0] {
		got = append(got, m.Seq)
		m.ConsumeToken.Release()
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 morsels replayed, got %d", len(got))
	}
	if got[0] != 100 || got[1] != 101 {
		t.Errorf("expected buffer replay to preserve original seq order, got %v", got)
	}
}

func TestBufferedStreamReinsertForwardsDownstreamWithOffsetSeq(t *testing.T) {
	b := NewBufferedStream()
	b.Push(mkMorsel(mkFrame(t, i64col("id", 1)), Seq(1)))
	b.Push(mkMorsel(mkFrame(t, i64col("id", 2)), Seq(2)))

	downstream := make(chan Morsel, 2)
	downstream <- mkMorsel(mkFrame(t, i64col("id", 3)), Seq(0))
	downstream <- mkMorsel(mkFrame(t, i64col("id", 4)), Seq(1))
	close(downstream)

	outs := b.Reinsert(1, downstream)
	var got []Seq
	for m := range outs[0] {
		got = append(got, m.Seq)
		m.ConsumeToken.Release()
	}
	if len(got) != 4 {
		t.Fatalf("expected 2 buffered + 2 downstream morsels, got %d", len(got))
	}
	offset := b.postBufferOffset()
	if got[2] != Seq(0)+offset || got[3] != Seq(1)+offset {
		t.Errorf("expected downstream seqs offset by %d, got %v", offset, got[2:])
	}
	// Every downstream seq must be strictly greater than every buffer seq.
	for _, bufSeq := range got[:2] {
		for _, dsSeq := range got[2:] {
			if dsSeq <= bufSeq {
				t.Errorf("expected downstream seq %d > buffer seq %d", dsSeq, bufSeq)
			}
		}
	}
}

func TestBufferedStreamReinsertFanOutDistributesAcrossPipelines(t *testing.T) {
	b := NewBufferedStream()
	for i := 0; i < 10; i++ {
		b.Push(mkMorsel(mkFrame(t, i64col("id", int64(i))), Seq(i)))
	}
	outs := b.Reinsert(4, nil)

	total := 0
	done := make(chan int, len(outs))
	for _, ch := range outs {
		ch := ch
		go func() {
			n := 0
			for m := range ch {
				n++
				m.ConsumeToken.Release()
			}
			done <- n
		}()
	}
	for range outs {
		total += <-done
	}
	if total != 10 {
		t.Fatalf("expected all 10 buffered morsels distributed across pipelines, got %d", total)
	}
}

func TestBufferedStreamCloseDrains(t *testing.T) {
	b := NewBufferedStream()
	b.Push(mkMorsel(mkFrame(t, i64col("id", 1)), Seq(1)))
	b.Push(mkMorsel(mkFrame(t, i64col("id", 2)), Seq(2)))
	if b.Len() != 2 {
		t.Fatalf("expected buffer length 2 before close, got %d", b.Len())
	}
	b.Close()
	if b.Len() != 0 {
		t.Errorf("expected buffer length 0 after close, got %d", b.Len())
	}
}

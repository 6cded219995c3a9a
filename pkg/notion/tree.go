package notion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/aptledger/pkg/document"
)

const (
	// MaxNestingDepth is how many levels of children one append request may
	// carry below its top-level blocks.
	MaxNestingDepth = 2

	// MaxBlocksPerRequest caps the blocks, nested ones included, sent in one
	// append request.
	MaxBlocksPerRequest = 100
)

var (
	// ErrNestingTooDeep is returned for a subtree that can only be created in
	// one request (column lists, columns, tables) but is deeper than one
	// request allows.
	ErrNestingTooDeep = errors.New("block tree nested too deeply")

	// ErrTooManyBlocks is returned for a column list whose columns cannot all
	// be sent in one request.
	ErrTooManyBlocks = errors.New("block tree too wide for one request")
)

// AppendStats summarizes an AppendTree run.
type AppendStats struct {
	Requests int
	Blocks   int
	Failed   int
}

// deferred holds nodes to append under a block once it exists. path leads
// from the top-level block of the request to that block, by child index.
type deferred struct {
	path  []int
	nodes []document.Node
}

func (d deferred) size() int {
	total := 0
	for _, n := range d.nodes {
		total += document.Count(n, -1)
	}
	return total
}

// item is one top-level block ready to send.
type item struct {
	block  map[string]any
	size   int
	defers []deferred
}

// total counts the item's blocks including the deferred ones.
func (it item) total() int {
	n := it.size
	for _, d := range it.defers {
		n += d.size()
	}
	return n
}

// AppendTree appends nodes under parentID, splitting the tree into requests
// that respect MaxNestingDepth and MaxBlocksPerRequest. Nodes whose children
// do not fit are created first and filled by follow-up requests. A failed
// batch is retried one block at a time; every failure is collected and the
// remaining blocks are still attempted.
func (c *Client) AppendTree(ctx context.Context, parentID string, nodes []document.Node) (AppendStats, error) {
	var stats AppendStats
	err := c.appendTree(ctx, parentID, nodes, &stats)
	return stats, err
}

func (c *Client) appendTree(ctx context.Context, parentID string, nodes []document.Node, stats *AppendStats) error {
	var errs []error

	items := make([]item, 0, len(nodes))
	for _, n := range nodes {
		it, err := prepare(n)
		if err != nil {
			stats.Failed += document.Count(n, -1)
			errs = append(errs, fmt.Errorf("%s block: %w", n.Kind(), err))
			continue
		}
		items = append(items, it)
	}

	for _, batch := range batches(items) {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		created, err := c.sendBatch(ctx, parentID, batch, stats)
		if err != nil && len(batch) == 1 {
			stats.Failed += batch[0].total()
			errs = append(errs, err)
			continue
		}
		if err != nil {
			c.log.Warn("batch append failed, retrying block by block", "parent", parentID, "blocks", len(batch), "error", err)
			created = make([]*Block, len(batch))
			for i := range batch {
				one, err := c.sendBatch(ctx, parentID, batch[i:i+1], stats)
				if err != nil {
					stats.Failed += batch[i].total()
					errs = append(errs, err)
					continue
				}
				created[i] = one[0]
			}
		}

		for i, it := range batch {
			if created[i] == nil {
				continue
			}
			for _, d := range it.defers {
				if err := c.fillDeferred(ctx, created[i].ID, d, stats); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Client) sendBatch(ctx context.Context, parentID string, batch []item, stats *AppendStats) ([]*Block, error) {
	blocks := make([]map[string]any, len(batch))
	size := 0
	for i, it := range batch {
		blocks[i] = it.block
		size += it.size
	}

	stats.Requests++
	res, err := c.AppendChildren(ctx, parentID, blocks)
	if err != nil {
		return nil, err
	}
	if len(res) < len(batch) {
		return nil, fmt.Errorf("append to %s: expected %d created blocks, got %d", parentID, len(batch), len(res))
	}
	stats.Blocks += size

	created := make([]*Block, len(batch))
	for i := range batch {
		created[i] = &res[i]
	}
	return created, nil
}

// fillDeferred resolves the target block of d by walking its path from
// rootID, then appends d's nodes under it.
func (c *Client) fillDeferred(ctx context.Context, rootID string, d deferred, stats *AppendStats) error {
	id := rootID
	for _, idx := range d.path {
		kids, err := c.ListChildren(ctx, id)
		stats.Requests++
		if err != nil {
			stats.Failed += d.size()
			return err
		}
		if idx >= len(kids) {
			stats.Failed += d.size()
			return fmt.Errorf("block %s has %d children, wanted index %d", id, len(kids), idx)
		}
		id = kids[idx].ID
	}
	return c.appendTree(ctx, id, d.nodes, stats)
}

// prepare encodes n for sending as a top-level block of a request.
func prepare(n document.Node) (item, error) {
	var it item
	block, size, err := encodeWithin(n, MaxNestingDepth, MaxBlocksPerRequest, nil, &it.defers)
	if err != nil {
		return item{}, err
	}
	it.block, it.size = block, size
	return it, nil
}

// encodeWithin encodes n with at most depth levels of children and at most
// room blocks, returning the block and how many blocks it holds. A node that
// does not fit is sent bare with its children deferred if it allows it.
// Otherwise its children share the room: every column of a column list is
// sent, and a column or table keeps the leading children that fit while the
// rest are deferred as appends to it.
func encodeWithin(n document.Node, depth, room int, path []int, defers *[]deferred) (map[string]any, int, error) {
	kids := n.Children()
	size := document.Count(n, -1)
	if len(kids) == 0 || (document.Depth(n) <= depth && size <= room) {
		return document.Encode(n, -1), size, nil
	}
	if document.CanDeferChildren(n) {
		*defers = append(*defers, deferred{path: path, nodes: kids})
		return document.Encode(n, 0), 1, nil
	}
	if depth == 0 {
		return nil, 0, ErrNestingTooDeep
	}
	if minSize(n) > room {
		return nil, 0, ErrTooManyBlocks
	}

	required := 1
	if n.Kind() == document.KindColumnList {
		required = len(kids)
	}

	left := room - 1
	encoded := make([]map[string]any, 0, len(kids))
	for i, k := range kids {
		reserve := 0
		for _, r := range kids[i+1 : max(required, i+1)] {
			reserve += minSize(r)
		}
		avail := left - reserve
		if n.Kind() == document.KindColumnList {
			// split what is left evenly over the remaining columns
			avail = min(avail, max(left/(len(kids)-i), minSize(k)))
		}
		if i >= required && minSize(k) > avail {
			*defers = append(*defers, deferred{path: path, nodes: kids[i:]})
			break
		}

		childPath := append(append([]int(nil), path...), i)
		e, used, err := encodeWithin(k, depth-1, avail, childPath, defers)
		if err != nil {
			return nil, 0, err
		}
		encoded = append(encoded, e)
		left -= used
	}

	block := document.Encode(n, 0)
	block[string(n.Kind())].(map[string]any)["children"] = encoded
	return block, room - left, nil
}

// minSize is the fewest blocks n can be sent with. A column list needs all
// of its columns, a column or table only its first child.
func minSize(n document.Node) int {
	kids := n.Children()
	if len(kids) == 0 || document.CanDeferChildren(n) {
		return 1
	}
	if n.Kind() != document.KindColumnList {
		return 1 + minSize(kids[0])
	}
	total := 1
	for _, k := range kids {
		total += minSize(k)
	}
	return total
}

// batches groups items so no request exceeds MaxBlocksPerRequest blocks. An
// item larger than the cap goes alone.
func batches(items []item) [][]item {
	var out [][]item
	var cur []item
	size := 0
	for _, it := range items {
		if len(cur) > 0 && size+it.size > MaxBlocksPerRequest {
			out = append(out, cur)
			cur, size = nil, 0
		}
		cur = append(cur, it)
		size += it.size
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

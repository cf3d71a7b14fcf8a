package btree

import (
	"treestore/pkg/buffer"
	"treestore/pkg/primitives"
)

// Insert adds the key/value pair. Returns false if the key already
// exists; the tree is not modified in that case.
//
// The descent uses exclusive latch crabbing: every ancestor stays
// latched until the current node is safe for insert (size < max), at
// which point all ancestors — including the root-pointer latch — are
// released in one shot.
func (t *BPlusTree[K]) Insert(key K, value primitives.RID) (bool, error) {
	ctx := &opContext{rootLatch: &t.rootLatch}
	defer ctx.release()

	t.rootLatch.Lock()
	ctx.rootLatchHeld = true

	hg, err := t.bpm.WritePage(t.headerPageID)
	if err != nil {
		return false, err
	}
	ctx.header = hg

	root := asHeader(hg.Data()).rootPageID()
	if !root.IsValid() {
		return t.startNewTree(hg, key, value)
	}

	g, err := t.bpm.WritePage(root)
	if err != nil {
		return false, err
	}
	ctx.push(g)
	for {
		node := asNode(g.Data())
		if node.size() < node.maxSize() {
			ctx.releaseAncestors()
		}
		if node.isLeaf() {
			break
		}
		ip := asInternal(g.Data(), t.codec)
		child := ip.childAt(ip.keyIndex(key) - 1)
		cg, err := t.bpm.WritePage(child)
		if err != nil {
			return false, err
		}
		ctx.push(cg)
		g = cg
	}

	leaf := t.leafViewMut(g)
	if !leaf.insert(key, value) {
		return false, nil
	}
	if leaf.size() <= t.leafMaxSize {
		return true, nil
	}

	rg, err := t.split(g)
	if err != nil {
		return false, err
	}
	risen := asLeaf(rg.Data(), t.codec).keyAt(0)
	lg := ctx.pop()
	if err := t.insertToParent(ctx, lg, rg, risen); err != nil {
		return false, err
	}
	return true, nil
}

// startNewTree allocates the first leaf root and records it in the
// header. hg is the already-latched header guard owned by the context.
func (t *BPlusTree[K]) startNewTree(hg *buffer.WriteGuard, key K, value primitives.RID) (bool, error) {
	pid := t.bpm.NewPage()
	g, err := t.bpm.WritePage(pid)
	if err != nil {
		return false, err
	}
	leaf := t.leafViewMut(g)
	leaf.init(pid, primitives.InvalidPageID, t.leafMaxSize, 0, primitives.InvalidPageID)
	leaf.insert(key, value)
	asHeader(hg.DataMut()).setRootPageID(pid)
	g.Drop()
	return true, nil
}

// split allocates a right sibling for the overflowing node guarded by
// g, moves the upper half of its entries across, and returns the new
// sibling's write guard. Leaf splits relink the next-leaf chain;
// internal splits re-parent the moved children.
func (t *BPlusTree[K]) split(g *buffer.WriteGuard) (*buffer.WriteGuard, error) {
	pid := t.bpm.NewPage()
	ng, err := t.bpm.WritePage(pid)
	if err != nil {
		return nil, err
	}
	node := asNode(g.Data())
	if node.isLeaf() {
		cur := t.leafViewMut(g)
		right := t.leafViewMut(ng)
		right.init(pid, cur.parentPageID(), t.leafMaxSize, 0, cur.nextPageID())
		cur.setNextPageID(pid)
		cur.moveHalfTo(right)
	} else {
		cur := t.internalViewMut(g)
		right := t.internalViewMut(ng)
		// Size starts at 1: child slot 0 is a placeholder, so the first
		// moved entry lands at slot 1 with the promoted separator as its
		// key; removeFirstKey later drops the placeholder and the key.
		right.init(pid, cur.parentPageID(), t.internalMaxSize, 1)
		if err := cur.moveHalfTo(right, t.adopter(pid)); err != nil {
			ng.Drop()
			return nil, err
		}
	}
	return ng, nil
}

// insertToParent links a freshly split right sibling under the parent
// of left, splitting upward as needed. It owns both guards and drops
// them; the parent chain is taken from ctx, where crabbing left every
// ancestor that may still change.
func (t *BPlusTree[K]) insertToParent(ctx *opContext, leftG, rightG *buffer.WriteGuard, key K) error {
	left := asNode(leftG.Data())
	right := asNode(rightG.Data())

	if left.isRoot() {
		if ctx.header == nil {
			panic("root split without the header page latched")
		}
		newRootID := t.bpm.NewPage()
		pg, err := t.bpm.WritePage(newRootID)
		if err != nil {
			leftG.Drop()
			rightG.Drop()
			return err
		}
		rootPg := t.internalViewMut(pg)
		rootPg.init(newRootID, primitives.InvalidPageID, t.internalMaxSize, 2)
		rootPg.setKeyAt(1, key)
		rootPg.setChildAt(0, left.pageID())
		rootPg.setChildAt(1, right.pageID())
		asNode(leftG.DataMut()).setParentPageID(newRootID)
		asNode(rightG.DataMut()).setParentPageID(newRootID)
		asHeader(ctx.header.DataMut()).setRootPageID(newRootID)
		leftG.Drop()
		rightG.Drop()
		pg.Drop()
		return nil
	}

	parentG := ctx.last()
	if parentG == nil {
		panic("split propagated past the retained ancestor chain")
	}
	asNode(rightG.DataMut()).setParentPageID(left.parentPageID())
	rightID := right.pageID()
	leftG.Drop()
	rightG.Drop()

	parent := t.internalViewMut(parentG)
	parent.insert(key, rightID)
	if parent.size() <= t.internalMaxSize {
		return nil
	}

	sibG, err := t.split(parentG)
	if err != nil {
		return err
	}
	sib := t.internalViewMut(sibG)
	risen := sib.keyAt(1)
	sib.removeFirstKey()
	pg := ctx.pop()
	return t.insertToParent(ctx, pg, sibG, risen)
}

package insn

// Node is one entry of a List: an instruction, a label, a line number marker or a frame marker.
// Labels have identity semantics; jumps and switches refer to label nodes by pointer.
type Node struct {
	Imm    any
	Opcode int
	prev   *Node
	next   *Node
	list   *List
}

// NewInsn creates a detached instruction node.
func NewInsn(op int, imm any) *Node {
	return &Node{Opcode: op, Imm: imm}
}

// NewLabel creates a detached label node.
func NewLabel() *Node {
	return &Node{Opcode: OpLabel}
}

// Next returns the following node, or nil at the end of the list.
func (n *Node) Next() *Node { return n.next }

// Prev returns the preceding node, or nil at the start of the list.
func (n *Node) Prev() *Node { return n.prev }

// List returns the list n belongs to, or nil when detached.
func (n *Node) List() *List { return n.list }

// Kind returns the payload kind of n.
func (n *Node) Kind() Kind { return KindOf(n.Opcode) }

// IsLabel reports whether n is a label.
func (n *Node) IsLabel() bool { return n.Opcode == OpLabel }

// List is a mutable, doubly linked sequence of nodes forming a method body.
// A List is not safe for concurrent mutation.
type List struct {
	first *Node
	last  *Node
	size  int
}

// NewList creates a list holding the given detached nodes in order.
func NewList(nodes ...*Node) *List {
	l := &List{}
	for _, n := range nodes {
		l.Add(n)
	}
	return l
}

// First returns the first node, or nil when empty.
func (l *List) First() *Node { return l.first }

// Last returns the last node, or nil when empty.
func (l *List) Last() *Node { return l.last }

// Len returns the number of nodes.
func (l *List) Len() int { return l.size }

// Add appends a detached node.
func (l *List) Add(n *Node) {
	l.claim(n)
	n.prev = l.last
	n.next = nil
	if l.last != nil {
		l.last.next = n
	} else {
		l.first = n
	}
	l.last = n
	l.size++
}

// AddAll moves every node of other to the end of l, leaving other empty.
func (l *List) AddAll(other *List) {
	for n := other.first; n != nil; {
		next := n.next
		n.list, n.prev, n.next = nil, nil, nil
		l.Add(n)
		n = next
	}
	other.first, other.last, other.size = nil, nil, 0
}

// InsertBefore inserts a detached node before mark.
func (l *List) InsertBefore(mark, n *Node) {
	l.mustOwn(mark)
	l.claim(n)
	n.next = mark
	n.prev = mark.prev
	if mark.prev != nil {
		mark.prev.next = n
	} else {
		l.first = n
	}
	mark.prev = n
	l.size++
}

// InsertAfter inserts a detached node after mark.
func (l *List) InsertAfter(mark, n *Node) {
	l.mustOwn(mark)
	l.claim(n)
	n.prev = mark
	n.next = mark.next
	if mark.next != nil {
		mark.next.prev = n
	} else {
		l.last = n
	}
	mark.next = n
	l.size++
}

// Remove unlinks n from the list.
func (l *List) Remove(n *Node) {
	l.mustOwn(n)
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.first = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.last = n.prev
	}
	n.list, n.prev, n.next = nil, nil, nil
	l.size--
}

// Index returns the position of n, or -1 when n is not in l.
// The first and last positions are answered without a scan.
func (l *List) Index(n *Node) int {
	if n == nil || n.list != l {
		return -1
	}
	if n == l.first {
		return 0
	}
	if n == l.last {
		return l.size - 1
	}
	i := 0
	for cur := l.first; cur != nil; cur = cur.next {
		if cur == n {
			return i
		}
		i++
	}
	return -1
}

// Get returns the node at position i, or nil when out of range.
func (l *List) Get(i int) *Node {
	if i < 0 || i >= l.size {
		return nil
	}
	cur := l.first
	for ; i > 0; i-- {
		cur = cur.next
	}
	return cur
}

// Slice returns the nodes in order.
func (l *List) Slice() []*Node {
	out := make([]*Node, 0, l.size)
	for cur := l.first; cur != nil; cur = cur.next {
		out = append(out, cur)
	}
	return out
}

// Opcodes returns the opcode of every node in order.
func (l *List) Opcodes() []int {
	out := make([]int, 0, l.size)
	for cur := l.first; cur != nil; cur = cur.next {
		out = append(out, cur.Opcode)
	}
	return out
}

func (l *List) claim(n *Node) {
	if n.list != nil {
		panic("insn: node already belongs to a list")
	}
	n.list = l
}

func (l *List) mustOwn(n *Node) {
	if n.list != l {
		panic("insn: node does not belong to this list")
	}
}

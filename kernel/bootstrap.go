package kernel

import (
	"fmt"

	"capos/abi"
	"capos/elf"
	"capos/hal"
)

// Boot builds the root capability pool from the machine's free memory,
// loads rinit into a fresh address space and registers it as the first
// Active task. Every error is a *BootError.
func Boot(cfg Config) (*Kernel, error) {
	m := cfg.Machine
	k := &Kernel{
		cpu:   m.CPU(),
		ports: m.Ports(),
		log:   cfg.Logger,
		trace: cfg.Trace,
		space: NewSpace(m.Memory()),
	}

	regions := m.FreeRegions()
	k.logf("archinfo: free regions %v, rinit %v", regions, m.RinitRegion())
	if len(regions) == 0 {
		return nil, bootErr("memory", ErrNoMemory)
	}
	if err := k.bootstrapPool(regions); err != nil {
		return nil, err
	}
	k.logf("CPool: %v", k.root)
	k.logf("Untyped: %v", k.untyped)

	img, err := k.bootstrapRinitPaging(m)
	if err != nil {
		return nil, err
	}
	defer img.table.Drop()
	defer img.buffer.Drop()

	task, err := RetypeFrom[*Task](k.space, k.untyped)
	if err != nil {
		return nil, bootErr("rinit task", err)
	}
	tg := task.Write()
	rinit := tg.Get()
	rinit.SetInstructionPointer(img.entry)
	rinit.SetStackPointer(img.stack)
	rinit.Activate()
	rinit.DowngradeCPool(k.root)
	rinit.DowngradeTopPageTable(img.table)
	rinit.DowngradeBuffer(img.buffer)
	tg.Release()
	k.register(task)
	task.Drop()

	if k.keyboard, err = k.bootstrapChannel(abi.SlotKeyboard); err != nil {
		return nil, err
	}
	if k.utility, err = k.bootstrapChannel(abi.SlotUtility); err != nil {
		return nil, err
	}
	return k, nil
}

// bootstrapPool retypes the root pool out of the first free region, puts a
// self reference at slot 0 and every region's Untyped in a free slot. The
// largest region becomes the kernel's working Untyped.
func (k *Kernel) bootstrapPool(regions []hal.Region) error {
	first := BootstrapUntyped(k.space, regions[0])
	root, err := RetypeFrom[*CPool](k.space, first)
	if err != nil {
		first.Drop()
		return bootErr("root cpool", err)
	}
	k.root = root

	g := root.Write()
	defer g.Release()
	pool := g.Get()
	pool.DowngradeAt(root, abi.SlotRootPool)
	pool.DowngradeFree(first)

	working, size := first, regions[0].Length
	for _, r := range regions[1:] {
		u := BootstrapUntyped(k.space, r)
		pool.DowngradeFree(u)
		if r.Length > size {
			working.Drop()
			working, size = u, r.Length
		} else {
			u.Drop()
		}
	}
	k.untyped = working
	return nil
}

func (k *Kernel) bootstrapChannel(idx abi.Index) (Cap[*Channel], error) {
	ch, err := RetypeFrom[*Channel](k.space, k.untyped)
	if err != nil {
		return Cap[*Channel]{}, bootErr(fmt.Sprintf("channel %d", idx), err)
	}
	g := k.root.Write()
	g.Get().DowngradeAt(ch, idx)
	g.Release()
	return ch, nil
}

type rinitImage struct {
	table  Cap[*TopPageTable]
	buffer Cap[*TaskBufferPage]
	entry  VAddr
	stack  VAddr
}

// bootstrapRinitPaging builds rinit's address space: ELF segments, parent
// and child stacks, parent and child task buffers and the VGA text page.
//
// This is the one place that holds the pool, the working Untyped and the
// top table together; no task exists yet.
func (k *Kernel) bootstrapRinitPaging(m hal.Machine) (rinitImage, error) {
	var img rinitImage

	pg := k.root.Write()
	defer pg.Release()
	pool := pg.Get()
	ug := k.untyped.Write()
	defer ug.Release()
	u := ug.Get()

	table, err := retype[*TopPageTable](k.space, u)
	if err != nil {
		return img, bootErr("top page table", err)
	}
	pool.DowngradeFree(table)
	tg := table.Write()
	defer tg.Release()
	top := tg.Get()

	fail := func(stage string, err error) (rinitImage, error) {
		table.Drop()
		img.buffer.Drop()
		return rinitImage{}, bootErr(stage, err)
	}

	region := m.RinitRegion()
	raw := k.space.mem.Slice(region.Start, region.Length)
	if raw == nil {
		return fail("rinit", fmt.Errorf("%w: region %v unreadable", ErrBadImage, region))
	}
	bin, err := elf.Parse(raw)
	if err != nil {
		return fail("rinit", fmt.Errorf("%w: %v", ErrBadImage, err))
	}
	k.logf("entry = %s", bin.Entry)
	if bin.Entry == 0 {
		return fail("rinit", ErrNoEntry)
	}
	img.entry = bin.Entry

	for _, seg := range bin.Loadable() {
		k.logf("pheader = vaddr %s offset 0x%x filesz 0x%x memsz 0x%x",
			seg.VAddr, seg.Offset, seg.FileSize, seg.MemSize)
		if seg.FileSize != seg.MemSize {
			return fail("rinit", fmt.Errorf("%w: segment at %s", ErrSegmentSize, seg.VAddr))
		}
		if err := k.loadSegment(top, u, pool, seg.VAddr, bin.Data(seg)); err != nil {
			return fail("rinit segment", err)
		}
	}

	k.logf("mapping the rinit stack ...")
	if err := k.mapStack(top, u, pool, abi.StackVAddr); err != nil {
		return fail("rinit stack", err)
	}
	k.logf("mapping the child rinit stack ...")
	if err := k.mapStack(top, u, pool, abi.ChildStackVAddr); err != nil {
		return fail("child stack", err)
	}

	k.logf("mapping the rinit task buffer ...")
	if img.buffer, err = k.mapBuffer(top, u, pool, abi.BufferVAddr); err != nil {
		return fail("rinit buffer", err)
	}
	child, err := k.mapBuffer(top, u, pool, abi.ChildBufferVAddr)
	if err != nil {
		return fail("child buffer", err)
	}
	pool.DowngradeAt(child, abi.SlotChildBuffer)
	child.Drop()

	k.logf("mapping the rinit vga buffer ...")
	vga := BootstrapRawPage(k.space, abi.VGAPAddr)
	pool.DowngradeFree(vga)
	err = top.Map(abi.VGAVAddr, vga, u, pool)
	vga.Drop()
	if err != nil {
		return fail("vga", err)
	}

	img.table = table
	img.stack = abi.InitialSP(abi.StackVAddr)
	return img, nil
}

// loadSegment maps every page covering [v, v+len(data)) and copies data in.
// A page already mapped by an earlier segment is reused.
func (k *Kernel) loadSegment(top *TopPageTable, u *Untyped, pool *CPool, v VAddr, data []byte) error {
	end := v + VAddr(len(data))
	for pv := v.AlignDown(PageLength); pv < end; pv += PageLength {
		k.logf("mapping from: %s", pv)
		frame, ok := top.Translate(pv)
		if !ok {
			p, err := k.mapFresh(top, u, pool, pv)
			if err != nil {
				return err
			}
			frame = p.PAddr()
			p.Drop()
		}

		lo, hi := pv, pv+PageLength
		if lo < v {
			lo = v
		}
		if hi > end {
			hi = end
		}
		dst := k.space.mem.Slice(frame+PAddr(lo-pv), uint64(hi-lo))
		copy(dst, data[lo-v:hi-v])
	}
	return nil
}

func (k *Kernel) mapFresh(top *TopPageTable, u *Untyped, pool *CPool, v VAddr) (Cap[*RawPage], error) {
	p, err := retype[*RawPage](k.space, u)
	if err != nil {
		return p, err
	}
	pool.DowngradeFree(p)
	if err := top.Map(v, p, u, pool); err != nil {
		p.Drop()
		return Cap[*RawPage]{}, err
	}
	return p, nil
}

func (k *Kernel) mapStack(top *TopPageTable, u *Untyped, pool *CPool, base VAddr) error {
	for i := uint64(0); i < abi.StackPages; i++ {
		p, err := k.mapFresh(top, u, pool, base.Add(i*PageLength))
		if err != nil {
			return err
		}
		p.Drop()
	}
	return nil
}

func (k *Kernel) mapBuffer(top *TopPageTable, u *Untyped, pool *CPool, v VAddr) (Cap[*TaskBufferPage], error) {
	b, err := retype[*TaskBufferPage](k.space, u)
	if err != nil {
		return b, err
	}
	pool.DowngradeFree(b)
	if err := top.Map(v, b, u, pool); err != nil {
		b.Drop()
		return Cap[*TaskBufferPage]{}, err
	}
	return b, nil
}

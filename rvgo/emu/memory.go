package emu

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Note: 2**12 = 4 KiB, the page size most RISC-V toolchains link for.
const (
	PageAddrSize = 12
	PageKeySize  = 64 - PageAddrSize
	PageSize     = 1 << PageAddrSize
	PageAddrMask = PageSize - 1
)

type Page [PageSize]byte

func (p *Page) isZero() bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}

// Memory is a sparse byte-addressable memory. Pages are allocated on first write,
// and reads from pages that do not exist return zeroes.
type Memory struct {
	pages map[uint64]*Page

	// two caches: we often read instructions from one page, and do memory things with another page.
	// this prevents map lookups each instruction
	lastPageKeys [2]uint64
	lastPage     [2]*Page
}

func NewMemory() *Memory {
	return &Memory{
		pages:        make(map[uint64]*Page),
		lastPageKeys: [2]uint64{^uint64(0), ^uint64(0)}, // default to invalid keys, to not match any pages
	}
}

func (m *Memory) PageCount() int {
	return len(m.pages)
}

func (m *Memory) pageLookup(pageIndex uint64) (*Page, bool) {
	// hit caches
	if pageIndex == m.lastPageKeys[0] {
		return m.lastPage[0], true
	}
	if pageIndex == m.lastPageKeys[1] {
		return m.lastPage[1], true
	}
	p, ok := m.pages[pageIndex]

	// only cache existing pages.
	if ok {
		m.lastPageKeys[1] = m.lastPageKeys[0]
		m.lastPage[1] = m.lastPage[0]
		m.lastPageKeys[0] = pageIndex
		m.lastPage[0] = p
	}

	return p, ok
}

func (m *Memory) allocPage(pageIndex uint64) *Page {
	p := new(Page)
	m.pages[pageIndex] = p
	return p
}

// SetUnaligned writes dat at addr, crossing page boundaries as needed.
func (m *Memory) SetUnaligned(addr uint64, dat []byte) {
	for len(dat) > 0 {
		pageIndex := addr >> PageAddrSize
		pageAddr := addr & PageAddrMask
		p, ok := m.pageLookup(pageIndex)
		if !ok {
			// allocate the page if we have not already.
			p = m.allocPage(pageIndex)
		}
		n := copy(p[pageAddr:], dat)
		dat = dat[n:]
		addr += uint64(n)
	}
}

// GetUnaligned fills dest with the bytes starting at addr.
func (m *Memory) GetUnaligned(addr uint64, dest []byte) {
	for len(dest) > 0 {
		pageIndex := addr >> PageAddrSize
		pageAddr := addr & PageAddrMask
		var n int
		if p, ok := m.pageLookup(pageIndex); ok {
			n = copy(dest, p[pageAddr:])
		} else {
			n = int(PageSize - pageAddr)
			if n > len(dest) {
				n = len(dest)
			}
			clear(dest[:n])
		}
		dest = dest[n:]
		addr += uint64(n)
	}
}

// GetUint reads a little-endian value of size bytes (at most 8).
func (m *Memory) GetUint(addr uint64, size uint64) uint64 {
	var buf [8]byte
	m.GetUnaligned(addr, buf[:size])
	return binary.LittleEndian.Uint64(buf[:])
}

// SetUint writes the low size bytes of v in little-endian order.
func (m *Memory) SetUint(addr uint64, size uint64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	m.SetUnaligned(addr, buf[:size])
}

func (m *Memory) SetMemoryRange(addr uint64, r io.Reader) error {
	for {
		pageIndex := addr >> PageAddrSize
		pageAddr := addr & PageAddrMask
		p, ok := m.pageLookup(pageIndex)
		if !ok {
			p = m.allocPage(pageIndex)
		}
		n, err := r.Read(p[pageAddr:])
		addr += uint64(n)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

type memReader struct {
	m     *Memory
	addr  uint64
	count uint64
	mask  uint64
}

func (r *memReader) Read(dest []byte) (n int, err error) {
	if r.count == 0 {
		return 0, io.EOF
	}
	if uint64(len(dest)) > r.count {
		dest = dest[:r.count]
	}
	// stay within one page per read
	if room := PageSize - (r.addr & PageAddrMask); uint64(len(dest)) > room {
		dest = dest[:room]
	}
	r.m.GetUnaligned(r.addr, dest)
	n = len(dest)
	r.addr = (r.addr + uint64(n)) & r.mask
	r.count -= uint64(n)
	return n, nil
}

func (m *Memory) ReadMemoryRange(addr uint64, count uint64) io.Reader {
	return m.readMemoryRangeMasked(addr, count, ^uint64(0))
}

// readMemoryRangeMasked reads count bytes from addr, wrapping addresses with mask.
// Pages never straddle the wrap point, so a single read stays in range.
func (m *Memory) readMemoryRangeMasked(addr uint64, count uint64, mask uint64) io.Reader {
	return &memReader{m: m, addr: addr & mask, count: count, mask: mask}
}

// Digest commits to the memory contents. Zero pages are skipped,
// so memory that was only ever written with zeroes digests like empty memory.
func (m *Memory) Digest() common.Hash {
	indices := make([]uint64, 0, len(m.pages))
	for k, p := range m.pages {
		if !p.isZero() {
			indices = append(indices, k)
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	buf := make([]byte, 0, len(indices)*(8+PageSize))
	for _, k := range indices {
		buf = binary.BigEndian.AppendUint64(buf, k)
		buf = append(buf, m.pages[k][:]...)
	}
	return crypto.Keccak256Hash(buf)
}

type pageEntry struct {
	Index uint64        `json:"index"`
	Data  hexutil.Bytes `json:"data"`
}

func (m *Memory) MarshalJSON() ([]byte, error) {
	pages := make([]pageEntry, 0, len(m.pages))
	for k, p := range m.pages {
		pages = append(pages, pageEntry{
			Index: k,
			Data:  p[:],
		})
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Index < pages[j].Index
	})
	return json.Marshal(pages)
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	var pages []pageEntry
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}
	m.pages = make(map[uint64]*Page)
	m.lastPageKeys = [2]uint64{^uint64(0), ^uint64(0)}
	m.lastPage = [2]*Page{nil, nil}
	for i, p := range pages {
		if _, ok := m.pages[p.Index]; ok {
			return fmt.Errorf("cannot load duplicate page, entry %d, page index %d", i, p.Index)
		}
		if len(p.Data) != PageSize {
			return fmt.Errorf("page %d has %d bytes, expected %d", p.Index, len(p.Data), PageSize)
		}
		copy(m.allocPage(p.Index)[:], p.Data)
	}
	return nil
}

func (m *Memory) Usage() string {
	total := uint64(len(m.pages)) * PageSize
	const unit = 1024
	if total < unit {
		return fmt.Sprintf("%d B", total)
	}
	div, exp := uint64(unit), 0
	for n := total / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	// KiB, MiB, GiB, TiB, ...
	return fmt.Sprintf("%.1f %ciB", float64(total)/float64(div), "KMGTPE"[exp])
}

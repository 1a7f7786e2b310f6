package handoff

type Extent struct {
	Width  int32
	Height int32
}

type Offset struct {
	X, Y, Z int32
}

// Blit is a region copy between two images, as two corner offsets each.
type Blit struct {
	Src [2]Offset
	Dst [2]Offset
}

// BlitRegion copies the full source extent onto the full destination
// extent. A size difference is resolved by scaling. With flipY the source
// rows are read bottom up, which turns a GL origin image upright.
func BlitRegion(src, dst Extent, flipY bool) Blit {
	b := Blit{
		Src: [2]Offset{{0, 0, 0}, {src.Width, src.Height, 1}},
		Dst: [2]Offset{{0, 0, 0}, {dst.Width, dst.Height, 1}},
	}
	if flipY {
		b.Src[0].Y, b.Src[1].Y = src.Height, 0
	}
	return b
}

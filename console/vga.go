package console

import (
	"image"
	"strings"

	"github.com/fogleman/gg"

	"capos/abi"
	"capos/hal"
)

// VGA text mode page: 80x25 cells of (character, attribute).
const (
	VGAColumns = 80
	VGARows    = 25

	cellWidth  = 8
	cellHeight = 16
)

var vgaPalette = [16][3]float64{
	{0, 0, 0}, {0, 0, 0.67}, {0, 0.67, 0}, {0, 0.67, 0.67},
	{0.67, 0, 0}, {0.67, 0, 0.67}, {0.67, 0.33, 0}, {0.67, 0.67, 0.67},
	{0.33, 0.33, 0.33}, {0.33, 0.33, 1}, {0.33, 1, 0.33}, {0.33, 1, 1},
	{1, 0.33, 0.33}, {1, 0.33, 1}, {1, 1, 0.33}, {1, 1, 1},
}

func vgaPage(mem hal.Memory) []byte {
	return mem.Slice(abi.VGAPAddr, VGAColumns*VGARows*2)
}

func vgaRune(b byte) rune {
	if b >= 0x20 && b < 0x7f {
		return rune(b)
	}
	return ' '
}

// VGAText returns the characters of each row with trailing blanks removed.
func VGAText(mem hal.Memory) []string {
	page := vgaPage(mem)
	if page == nil {
		return nil
	}
	rows := make([]string, VGARows)
	var sb strings.Builder
	for y := 0; y < VGARows; y++ {
		sb.Reset()
		for x := 0; x < VGAColumns; x++ {
			sb.WriteRune(vgaRune(page[(y*VGAColumns+x)*2]))
		}
		rows[y] = strings.TrimRight(sb.String(), " ")
	}
	return rows
}

// RenderVGA draws the text page with the standard 16-colour palette.
func RenderVGA(mem hal.Memory) image.Image {
	dc := gg.NewContext(VGAColumns*cellWidth, VGARows*cellHeight)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	page := vgaPage(mem)
	if page == nil {
		return dc.Image()
	}
	for y := 0; y < VGARows; y++ {
		for x := 0; x < VGAColumns; x++ {
			ch, attr := page[(y*VGAColumns+x)*2], page[(y*VGAColumns+x)*2+1]
			px, py := float64(x*cellWidth), float64(y*cellHeight)

			if bg := vgaPalette[(attr>>4)&0x7]; bg != vgaPalette[0] {
				dc.SetRGB(bg[0], bg[1], bg[2])
				dc.DrawRectangle(px, py, cellWidth, cellHeight)
				dc.Fill()
			}
			r := vgaRune(ch)
			if r == ' ' {
				continue
			}
			fg := vgaPalette[attr&0xF]
			dc.SetRGB(fg[0], fg[1], fg[2])
			dc.DrawString(string(r), px, py+cellHeight-4)
		}
	}
	return dc.Image()
}

// SaveVGAPNG writes RenderVGA's output to path.
func SaveVGAPNG(mem hal.Memory, path string) error {
	dc := gg.NewContextForImage(RenderVGA(mem))
	return dc.SavePNG(path)
}

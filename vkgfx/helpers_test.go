// helpers_test.go
package vkgfx

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestChooseSurfaceFormatPrefersSRGB(t *testing.T) {
	formats := []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	got := chooseSurfaceFormat(formats)
	if got.Format != vk.FormatB8g8r8a8Srgb {
		t.Errorf("chose format %v, want B8G8R8A8 sRGB", got.Format)
	}
}

func TestChooseSurfaceFormatFallsBackToFirst(t *testing.T) {
	formats := []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatR5g6b5UnormPack16, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	got := chooseSurfaceFormat(formats)
	if got.Format != vk.FormatR8g8b8a8Unorm {
		t.Errorf("chose format %v, want the first listed", got.Format)
	}
}

func TestChoosePresentMode(t *testing.T) {
	withMailbox := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}
	if got := choosePresentMode(withMailbox); got != vk.PresentModeMailbox {
		t.Errorf("chose %v, want mailbox", got)
	}

	fifoOnly := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate}
	if got := choosePresentMode(fifoOnly); got != vk.PresentModeFifo {
		t.Errorf("chose %v, want fifo", got)
	}
}

func TestChooseExtentHonorsCurrentExtent(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent: vk.Extent2D{Width: 1024, Height: 768},
	}
	got := chooseExtent(caps, 1, 1)
	if got.Width != 1024 || got.Height != 768 {
		t.Errorf("extent = %dx%d, want the surface's 1024x768", got.Width, got.Height)
	}
}

func TestChooseExtentClampsWhenFree(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: 0xFFFFFFFF, Height: 0xFFFFFFFF},
		MinImageExtent: vk.Extent2D{Width: 200, Height: 200},
		MaxImageExtent: vk.Extent2D{Width: 2000, Height: 2000},
	}

	got := chooseExtent(caps, 100, 5000)
	if got.Width != 200 || got.Height != 2000 {
		t.Errorf("extent = %dx%d, want clamped 200x2000", got.Width, got.Height)
	}

	got = chooseExtent(caps, 800, 600)
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("extent = %dx%d, want the drawable 800x600", got.Width, got.Height)
	}
}

func TestChooseImageCount(t *testing.T) {
	cases := []struct {
		min, max uint32
		want     uint32
	}{
		{min: 2, max: 0, want: 3}, // zero max means unlimited
		{min: 2, max: 8, want: 3},
		{min: 3, max: 3, want: 3}, // capped
	}
	for _, c := range cases {
		caps := vk.SurfaceCapabilities{MinImageCount: c.min, MaxImageCount: c.max}
		if got := chooseImageCount(caps); got != c.want {
			t.Errorf("min=%d max=%d: got %d, want %d", c.min, c.max, got, c.want)
		}
	}
}

func TestSafeString(t *testing.T) {
	if got := safeString("VK_KHR_swapchain"); got != "VK_KHR_swapchain\x00" {
		t.Errorf("got %q", got)
	}
	if got := safeString("VK_KHR_swapchain\x00"); got != "VK_KHR_swapchain\x00" {
		t.Errorf("double-terminated: %q", got)
	}
}

func TestCheckerboardPixels(t *testing.T) {
	pix := checkerboardPixels()
	if len(pix) != texSize*texSize*4 {
		t.Fatalf("got %d bytes, want %d", len(pix), texSize*texSize*4)
	}
	// Opaque everywhere, and the two corner cells along the top row differ.
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 255 {
			t.Fatalf("pixel %d not opaque", i/4)
		}
	}
	cell := texSize / texCells
	if pix[0] == pix[cell*4] {
		t.Error("adjacent cells have the same color")
	}
}

func TestQueueFamiliesDistinct(t *testing.T) {
	same := queueFamilies{graphics: 0, present: 0}
	if same.distinct() {
		t.Error("same family reported distinct")
	}
	diff := queueFamilies{graphics: 0, present: 2}
	if !diff.distinct() {
		t.Error("different families reported shared")
	}
}

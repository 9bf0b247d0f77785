package model

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockOf returns the block name (IN00..IN11, M00, OUT00..OUT11) of a UNet
// tensor key, or "" for tensors outside the block structure and for text
// encoder tensors.
func BlockOf(key string) string {
	rest, ok := strings.CutPrefix(key, "unet.")
	if !ok {
		return ""
	}
	if strings.HasPrefix(rest, "middle_block.") {
		return "M00"
	}
	for prefix, label := range map[string]string{"input_blocks.": "IN", "output_blocks.": "OUT"} {
		idx, found := strings.CutPrefix(rest, prefix)
		if !found {
			continue
		}
		num, _, _ := strings.Cut(idx, ".")
		n, err := strconv.Atoi(num)
		if err != nil || n < 0 {
			return ""
		}
		return fmt.Sprintf("%s%02d", label, n)
	}
	return ""
}

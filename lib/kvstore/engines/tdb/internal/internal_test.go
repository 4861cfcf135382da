package internal

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycleCodes(t *testing.T) {
	s := NewStore("")
	require.Equal(t, CodeNotReady, s.Set("k", []byte{1}, 0))
	require.Equal(t, CodeNotReady, s.Deinit())

	require.Equal(t, CodeSuccess, s.Init())
	require.Equal(t, CodeSuccess, s.Init(), "init is idempotent")
	require.Equal(t, CodeSuccess, s.Set("k", []byte{1}, 0))
	require.Equal(t, CodeSuccess, s.Deinit())

	_, code := s.GetInfo("k")
	require.Equal(t, CodeNotReady, code)
}

func TestGetNeedsRoomForTheWholeValue(t *testing.T) {
	s := NewStore("")
	require.Equal(t, CodeSuccess, s.Init())
	require.Equal(t, CodeSuccess, s.Set("k", []byte{1, 2, 3}, 0))

	buf := []byte{9, 9}
	n, code := s.Get("k", buf)
	require.Equal(t, CodeInvalidSize, code)
	require.Equal(t, 3, n)
	require.Equal(t, []byte{9, 9}, buf)

	_, code = s.Get("missing", buf)
	require.Equal(t, CodeItemNotFound, code)
}

func TestWriteOnce(t *testing.T) {
	s := NewStore("")
	require.Equal(t, CodeSuccess, s.Init())

	require.Equal(t, CodeSuccess, s.Set("serial", []byte("A1"), FlagWriteOnce))
	require.Equal(t, CodeWriteProtected, s.Set("serial", []byte("B2"), 0))
	require.Equal(t, CodeWriteProtected, s.Remove("serial"))

	info, code := s.GetInfo("serial")
	require.Equal(t, CodeSuccess, code)
	require.Equal(t, FlagWriteOnce, info.Flags)

	require.Equal(t, CodeInvalidArgument, s.Set("other", []byte{1}, FlagRequireConfidentiality))
	require.Equal(t, CodeSuccess, s.Reset())
	require.Equal(t, CodeSuccess, s.Set("serial", []byte("B2"), 0))
}

func TestKeyRules(t *testing.T) {
	require.True(t, ValidKey("wifi_ssid"))
	require.False(t, ValidKey(""))
	require.False(t, ValidKey("a/b"))
	require.False(t, ValidKey("a b"))
	require.False(t, ValidKey(string(bytes.Repeat([]byte{'k'}, MaxKeySize))))
}

func TestSaveLoad(t *testing.T) {
	s := NewStore("")
	require.Equal(t, CodeSuccess, s.Init())
	require.Equal(t, CodeSuccess, s.Set("b", []byte("two"), 0))
	require.Equal(t, CodeSuccess, s.Set("a", []byte{1}, FlagWriteOnce))

	var img bytes.Buffer
	require.NoError(t, s.Save(&img))
	require.True(t, bytes.HasPrefix(img.Bytes(), []byte(magicNum)))

	restored := NewStore("")
	require.NoError(t, restored.Load(bytes.NewReader(img.Bytes())))
	require.Equal(t, CodeSuccess, restored.Init())
	require.Equal(t, []string{"a", "b"}, restored.Keys(""))

	buf := make([]byte, 3)
	n, code := restored.Get("b", buf)
	require.Equal(t, CodeSuccess, code)
	require.Equal(t, "two", string(buf[:n]))

	damaged := append([]byte(nil), img.Bytes()...)
	damaged[len(magicNum)+2] ^= 0x01
	require.Error(t, restored.Load(bytes.NewReader(damaged)))
	require.Equal(t, []string{"a", "b"}, restored.Keys(""), "a failed load keeps the content")

	require.Error(t, restored.Load(bytes.NewReader(img.Bytes()[:10])))
}

func TestImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area", "img.tdb")

	s := NewStore(path)
	require.Equal(t, CodeSuccess, s.Init())
	require.Equal(t, CodeSuccess, s.Set("x", []byte{7}, 0))
	require.Equal(t, CodeSuccess, s.Deinit())

	again := NewStore(path)
	require.Equal(t, CodeSuccess, again.Init())
	info, code := again.GetInfo("x")
	require.Equal(t, CodeSuccess, code)
	require.Equal(t, 1, info.Size)
	require.Equal(t, []string{"x"}, again.Keys("x"))
}

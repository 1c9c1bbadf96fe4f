package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modcheck/pkg/project"
)

func TestParseResource_Values(t *testing.T) {
	src := `<?xml version="1.0" encoding="utf-8"?>
<resources>
  <string name="app_name">App</string>
  <color name="primary">@color/blue</color>
  <color name="white">@android:color/white</color>
  <style name="Theme.App" parent="Theme.Base">
    <item name="colorPrimary">@color/primary</item>
  </style>
  <item name="toolbar" type="id"/>
  <declare-styleable name="CustomView">
    <attr name="label" format="string"/>
  </declare-styleable>
</resources>`

	fa, err := ParseResource("res/values-night/values.xml", []byte(src))
	require.NoError(t, err)

	decls := declarations(fa)
	for _, name := range []string{"R.string.app_name", "R.color.primary", "R.style.Theme_App", "R.id.toolbar", "R.styleable.CustomView", "R.attr.label"} {
		d, ok := decls[name]
		require.True(t, ok, name)
		assert.Equal(t, project.Resource, d.Kind)
	}

	refs := references(fa)
	assert.Contains(t, refs, "R.color.blue")
	assert.Contains(t, refs, "R.style.Theme_Base")
	assert.Contains(t, refs, "R.color.primary")
	assert.NotContains(t, refs, "R.color.white")
}

func TestParseResource_Layout(t *testing.T) {
	src := `<LinearLayout xmlns:android="http://schemas.android.com/apk/res/android"
    xmlns:tools="http://schemas.android.com/tools">
  <TextView android:id="@+id/title" android:text="@string/app_name" tools:text="@string/preview"/>
  <com.example.ui.CustomView android:id="@+id/custom"/>
  <fragment android:name="com.example.ui.DetailFragment"/>
</LinearLayout>`

	fa, err := ParseResource("res/layout/activity_main.xml", []byte(src))
	require.NoError(t, err)

	decls := declarations(fa)
	for _, name := range []string{"R.layout.activity_main", "R.id.title", "R.id.custom"} {
		assert.Contains(t, decls, name)
	}
	assert.Equal(t, []string{"activity_main"}, fa.Layouts)

	refs := references(fa)
	assert.Equal(t, project.ResourceRef, refs["R.string.app_name"].Kind)
	assert.NotContains(t, refs, "R.string.preview")
	assert.Equal(t, project.Explicit, refs["com.example.ui.CustomView"].Kind)
	assert.Equal(t, project.Explicit, refs["com.example.ui.DetailFragment"].Kind)
}

func TestParseResource_Files(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"res/drawable/icon.9.png", "R.drawable.icon"},
		{"res/drawable-hdpi/logo.webp", "R.drawable.logo"},
		{"res/mipmap-anydpi-v26/ic_launcher.xml", "R.mipmap.ic_launcher"},
		{"res/raw/intro.mp3", "R.raw.intro"},
		{"res/font/inter.ttf", "R.font.inter"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			content := []byte{0x89, 'P', 'N', 'G'}
			if tt.path[len(tt.path)-4:] == ".xml" {
				content = []byte(`<adaptive-icon xmlns:android="http://schemas.android.com/apk/res/android"><background android:drawable="@color/bg"/></adaptive-icon>`)
			}
			fa, err := ParseResource(tt.path, content)
			require.NoError(t, err)
			assert.Contains(t, declarations(fa), tt.want)
		})
	}
}

func TestParseResource_Malformed(t *testing.T) {
	_, err := ParseResource("res/values/broken.xml", []byte(`<resources><string name="a">`))
	assert.Error(t, err)
}

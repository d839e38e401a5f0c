package main

import (
	"bytes"
	"context"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/book-expert/blog-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type polishCall struct {
	content   string
	style     core.PolishStyle
	wantAudio bool
}

type fileCall struct {
	path      string
	wantAudio bool
}

// fakeEngine records calls and returns states pointing at fixed result paths.
type fakeEngine struct {
	failWith string

	runs     []workflow.Request
	polishes []polishCall
	files    []fileCall
}

func (f *fakeEngine) result(req workflow.Request) workflow.State {
	state := workflow.NewState(req, time.Now())
	if f.failWith != "" {
		return state.WithError(f.failWith)
	}

	state, _ = state.WithBlogFilePath("results/blog_20240101_000000.md")
	if req.WantAudio {
		state, _ = state.WithAudioFilePath("results/audio_20240101_000000.mp3")
	}

	return state
}

func (f *fakeEngine) Run(_ context.Context, req workflow.Request) workflow.State {
	f.runs = append(f.runs, req)

	return f.result(req)
}

func (f *fakeEngine) PolishExisting(_ context.Context, content string, style core.PolishStyle, wantAudio bool) workflow.State {
	f.polishes = append(f.polishes, polishCall{content: content, style: style, wantAudio: wantAudio})

	return f.result(workflow.Request{Topic: workflow.DefaultTitle, PolishStyle: style, WantAudio: wantAudio})
}

func (f *fakeEngine) ProcessFile(_ context.Context, path string, wantAudio bool) workflow.State {
	f.files = append(f.files, fileCall{path: path, wantAudio: wantAudio})

	state := f.result(workflow.Request{SourcePath: path, WantAudio: wantAudio})
	state, _ = state.WithTitle("我的博客")

	return state
}

func runMenu(t *testing.T, engine *fakeEngine, input string) string {
	t.Helper()

	var out bytes.Buffer

	err := newMenu(engine, strings.NewReader(input), &out).Loop(context.Background())
	require.NoError(t, err)

	return out.String()
}

func TestMenu_FullBlog(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	output := runMenu(t, engine, "1\nAI 与医疗\n2\n\n5\n")

	require.Len(t, engine.runs, 1)
	assert.Equal(t, workflow.Request{Topic: "AI 与医疗", Length: core.LengthMedium, WantAudio: true}, engine.runs[0])
	assert.Contains(t, output, msgBlogDone)
	assert.Contains(t, output, "主题：AI 与医疗")
	assert.Contains(t, output, "博客文件：results/blog_20240101_000000.md")
	assert.Contains(t, output, "音频文件：results/audio_20240101_000000.mp3")
	assert.Contains(t, output, msgGoodbye)
}

func TestMenu_TextOnly(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	output := runMenu(t, engine, "2\nGo 并发\n1\n\n5\n")

	require.Len(t, engine.runs, 1)
	assert.Equal(t, core.LengthShort, engine.runs[0].Length)
	assert.False(t, engine.runs[0].WantAudio)
	assert.Contains(t, output, msgTextDone)
	assert.NotContains(t, output, "音频文件：")
}

func TestMenu_InvalidChoices(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	output := runMenu(t, engine, "9\nabc\n1\n主题\n0\n3\n\n5\n")

	assert.Contains(t, output, "请输入 1 到 5 之间的数字")
	assert.Contains(t, output, "请输入 1 到 3 之间的数字")
	assert.Contains(t, output, msgNotNumber)

	require.Len(t, engine.runs, 1)
	assert.Equal(t, core.LengthLong, engine.runs[0].Length)
}

func TestMenu_PolishText(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	output := runMenu(t, engine, "3\n# 标题\n第一行\n第二行\neof\n3\n\n5\n")

	require.Len(t, engine.polishes, 1)
	assert.Equal(t, polishCall{
		content:   "# 标题\n第一行\n第二行",
		style:     core.StyleStory,
		wantAudio: true,
	}, engine.polishes[0])
	assert.Contains(t, output, msgPolishDone)
	assert.Contains(t, output, "音频文件：results/audio_20240101_000000.mp3")
}

func TestMenu_PolishEmptyText(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	output := runMenu(t, engine, "3\n   \nEOF\n\n5\n")

	assert.Contains(t, output, msgEmptyText)
	assert.Empty(t, engine.polishes)
}

func TestMenu_ProcessFile(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	output := runMenu(t, engine, "4\n posts/draft.md \n2\n\n5\n")

	require.Len(t, engine.files, 1)
	assert.Equal(t, fileCall{path: "posts/draft.md", wantAudio: false}, engine.files[0])
	assert.Contains(t, output, msgFileDone)
	assert.Contains(t, output, "主题：我的博客")
	assert.Contains(t, output, "原始文件：posts/draft.md")
	assert.Contains(t, output, "润色后文件：results/blog_20240101_000000.md")
}

func TestMenu_Failure(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{failWith: "generate: llm generate failed: boom"}
	output := runMenu(t, engine, "1\nX\n2\n\n5\n")

	assert.Contains(t, output, "处理失败：generate: llm generate failed: boom")
	assert.NotContains(t, output, msgBlogDone)
}

func TestMenu_InputClosed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "no input", input: ""},
		{name: "closed at topic", input: "1\n"},
		{name: "closed at length", input: "2\nX\n"},
		{name: "closed after a run", input: "2\nX\n1\n"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			output := runMenu(t, &fakeEngine{}, testCase.input)
			assert.Contains(t, output, menuTitle)
			assert.NotContains(t, output, msgGoodbye)
		})
	}
}

func TestMenu_PolishTextEndsWithInput(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	runMenu(t, engine, "3\n只有一行")

	assert.Empty(t, engine.polishes)
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	set := flag.NewFlagSet("blog-cli", flag.ContinueOnError)
	flags := parseFlags(set, []string{"--config", "project.toml", "--verbose"})

	assert.Equal(t, appFlags{config: "project.toml", verbose: true}, flags)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	_, err := loadConfig("does-not-exist.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

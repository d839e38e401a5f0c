package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/book-expert/blog-workflow/internal/workflow"
)

// Menu choices.
const (
	choiceFullBlog = iota + 1
	choiceTextOnly
	choicePolishText
	choiceProcessFile
	choiceExit
)

const (
	separatorWidth = 50
	endOfTextMark  = "EOF"
)

// Menu text.
const (
	menuTitle        = "AI 博客生成与语音合成系统"
	menuFullBlog     = "1. 根据主题生成完整博客（带语音）"
	menuTextOnly     = "2. 仅生成博客文本（不生成语音）"
	menuPolishText   = "3. 对已有文本进行润色和语音生成"
	menuProcessFile  = "4. 处理已有的博客文件"
	menuExit         = "5. 退出程序"
	promptChoice     = "请输入选择："
	promptTopic      = "请输入博客主题："
	promptFile       = "请输入博客文件路径："
	promptContinue   = "\n按 Enter 键继续..."
	promptPolishText = "请输入要润色的文本（输入 'EOF' 结束）："
	msgNotNumber     = "请输入有效的数字"
	msgOutOfRangeFmt = "请输入 %d 到 %d 之间的数字\n"
	msgEmptyText     = "错误：输入文本不能为空"
	msgGoodbye       = "感谢使用 AI 博客生成与语音合成系统！"
)

// Result text.
const (
	msgBlogDone     = "博客生成完成！"
	msgTextDone     = "博客文本生成完成！"
	msgPolishDone   = "文本润色和语音生成完成！"
	msgFileDone     = "博客文件处理完成！"
	msgFailedFmt    = "处理失败：%s\n"
	msgTopicFmt     = "主题：%s\n"
	msgBlogFileFmt  = "博客文件：%s\n"
	msgAudioFileFmt = "音频文件：%s\n"
	msgOriginalFmt  = "原始文件：%s\n"
	msgPolishedFmt  = "润色后文件：%s\n"
)

var errInputClosed = errors.New("input closed")

var (
	lengthChoices = []core.Length{core.LengthShort, core.LengthMedium, core.LengthLong}
	styleChoices  = []core.PolishStyle{core.StyleBlog, core.StyleArticle, core.StyleStory, core.StyleOther}
)

// blogEngine is the part of the workflow engine the menu drives.
type blogEngine interface {
	Run(ctx context.Context, req workflow.Request) workflow.State
	PolishExisting(ctx context.Context, content string, style core.PolishStyle, wantAudio bool) workflow.State
	ProcessFile(ctx context.Context, path string, wantAudio bool) workflow.State
}

type menu struct {
	engine blogEngine
	in     *bufio.Reader
	out    io.Writer
}

func newMenu(engine blogEngine, in io.Reader, out io.Writer) *menu {
	return &menu{
		engine: engine,
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// Loop shows the menu until the user exits or the input ends.
func (m *menu) Loop(ctx context.Context) error {
	for {
		m.showMenu()

		choice, err := m.choose(promptChoice, choiceFullBlog, choiceExit)
		if err != nil {
			return ignoreClosed(err)
		}

		if choice == choiceExit {
			m.println(msgGoodbye)

			return nil
		}

		actionErr := m.dispatch(ctx, choice)
		if actionErr != nil {
			return ignoreClosed(actionErr)
		}

		_, err = m.readLine(promptContinue)
		if err != nil {
			return ignoreClosed(err)
		}
	}
}

func (m *menu) dispatch(ctx context.Context, choice int) error {
	switch choice {
	case choiceFullBlog:
		return m.generate(ctx, true)
	case choiceTextOnly:
		return m.generate(ctx, false)
	case choicePolishText:
		return m.polishText(ctx)
	case choiceProcessFile:
		return m.processFile(ctx)
	default:
		return nil
	}
}

func (m *menu) generate(ctx context.Context, wantAudio bool) error {
	topic, err := m.readLine(promptTopic)
	if err != nil {
		return err
	}

	length, err := m.chooseLength()
	if err != nil {
		return err
	}

	m.separator()
	state := m.engine.Run(ctx, workflow.Request{Topic: topic, Length: length, WantAudio: wantAudio})
	m.separator()

	if !m.reportFailure(state) {
		if wantAudio {
			m.println(msgBlogDone)
		} else {
			m.println(msgTextDone)
		}

		m.printf(msgTopicFmt, state.Title())
		m.printf(msgBlogFileFmt, state.BlogFilePath())
		m.printAudio(state)
	}

	m.separator()

	return nil
}

func (m *menu) polishText(ctx context.Context) error {
	m.println(promptPolishText)

	content, err := m.readText()
	if err != nil {
		return err
	}

	if strings.TrimSpace(content) == "" {
		m.println(msgEmptyText)

		return nil
	}

	style, err := m.chooseStyle()
	if err != nil {
		return err
	}

	m.separator()
	state := m.engine.PolishExisting(ctx, content, style, true)
	m.separator()

	if !m.reportFailure(state) {
		m.println(msgPolishDone)
		m.printf(msgBlogFileFmt, state.BlogFilePath())
		m.printAudio(state)
	}

	m.separator()

	return nil
}

func (m *menu) processFile(ctx context.Context) error {
	path, err := m.readLine(promptFile)
	if err != nil {
		return err
	}

	m.println("是否生成语音文件？")
	m.println("1. 是")
	m.println("2. 否")

	audioChoice, err := m.choose(promptChoice, 1, 2)
	if err != nil {
		return err
	}

	m.separator()
	state := m.engine.ProcessFile(ctx, strings.TrimSpace(path), audioChoice == 1)
	m.separator()

	if !m.reportFailure(state) {
		m.println(msgFileDone)
		m.printf(msgTopicFmt, state.Title())
		m.printf(msgOriginalFmt, state.Config().SourcePath)
		m.printf(msgPolishedFmt, state.BlogFilePath())
		m.printAudio(state)
	}

	m.separator()

	return nil
}

// reportFailure prints the error of a failed run along with any file that was
// still written, and reports whether the run failed.
func (m *menu) reportFailure(state workflow.State) bool {
	if !state.Failed() {
		return false
	}

	m.printf(msgFailedFmt, state.Err())

	if state.BlogFilePath() != "" {
		m.printf(msgBlogFileFmt, state.BlogFilePath())
	}

	return true
}

func (m *menu) printAudio(state workflow.State) {
	if state.AudioFilePath() != "" {
		m.printf(msgAudioFileFmt, state.AudioFilePath())
	}
}

func (m *menu) chooseLength() (core.Length, error) {
	m.println("请选择博客长度：")
	m.println("1. 短（约300字）")
	m.println("2. 中（约500-800字）")
	m.println("3. 长（约1000字以上）")

	choice, err := m.choose(promptChoice, 1, len(lengthChoices))
	if err != nil {
		return "", err
	}

	return lengthChoices[choice-1], nil
}

func (m *menu) chooseStyle() (core.PolishStyle, error) {
	m.println("请选择润色类型：")
	m.println("1. 博客")
	m.println("2. 文章")
	m.println("3. 故事")
	m.println("4. 其他")

	choice, err := m.choose(promptChoice, 1, len(styleChoices))
	if err != nil {
		return "", err
	}

	return styleChoices[choice-1], nil
}

// choose asks until the answer is a number in [low, high].
func (m *menu) choose(prompt string, low, high int) (int, error) {
	for {
		line, err := m.readLine(prompt)
		if err != nil {
			return 0, err
		}

		choice, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr != nil {
			m.println(msgNotNumber)

			continue
		}

		if choice < low || choice > high {
			m.printf(msgOutOfRangeFmt, low, high)

			continue
		}

		return choice, nil
	}
}

// readText collects lines until the end marker or the end of input.
func (m *menu) readText() (string, error) {
	var lines []string

	for {
		line, err := m.readLine("")
		if errors.Is(err, errInputClosed) {
			break
		}

		if err != nil {
			return "", err
		}

		if strings.EqualFold(strings.TrimSpace(line), endOfTextMark) {
			break
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n"), nil
}

func (m *menu) readLine(prompt string) (string, error) {
	if prompt != "" {
		_, _ = fmt.Fprint(m.out, prompt)
	}

	line, err := m.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read input: %w", err)
		}

		if line == "" {
			return "", errInputClosed
		}
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (m *menu) showMenu() {
	m.separator()
	m.println(menuTitle)
	m.separator()
	m.println(menuFullBlog)
	m.println(menuTextOnly)
	m.println(menuPolishText)
	m.println(menuProcessFile)
	m.println(menuExit)
	m.separator()
}

func (m *menu) separator() {
	m.println(strings.Repeat("=", separatorWidth))
}

func (m *menu) println(text string) {
	_, _ = fmt.Fprintln(m.out, text)
}

func (m *menu) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(m.out, format, args...)
}

func ignoreClosed(err error) error {
	if errors.Is(err, errInputClosed) {
		return nil
	}

	return err
}

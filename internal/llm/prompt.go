package llm

import (
	"fmt"
	"strings"

	"github.com/book-expert/blog-workflow/internal/core"
)

// Prompt is the message pair sent to the chat model.
type Prompt struct {
	System string
	User   string
}

var lengthHints = map[core.Length]string{
	core.LengthShort:  "约300字",
	core.LengthMedium: "约500-800字",
	core.LengthLong:   "约1000字以上",
}

// LengthHint returns the word-count guidance for a blog length.
func LengthHint(length core.Length) string {
	hint, ok := lengthHints[length]
	if !ok {
		return lengthHints[core.LengthMedium]
	}

	return hint
}

// BuildGeneratePrompt asks for a complete blog post on topic.
func BuildGeneratePrompt(topic string, length core.Length) Prompt {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("请根据以下主题生成一篇%s的高质量博客：\n\n", LengthHint(length)))
	sb.WriteString(fmt.Sprintf("主题：%s\n\n", topic))
	sb.WriteString("要求：\n")
	sb.WriteString("1. 语言流畅自然，符合中文表达习惯\n")
	sb.WriteString("2. 结构清晰，有标题、引言、正文和结论\n")
	sb.WriteString("3. 内容丰富，有深度和见解\n")
	sb.WriteString("4. 用词准确，富有表现力\n")
	sb.WriteString("5. 适合发布在博客平台\n\n")
	sb.WriteString("生成的博客：\n")

	return Prompt{
		System: "你是一位专业的博客作家，擅长根据主题生成高质量的博客内容。",
		User:   sb.String(),
	}
}

// BuildPolishPrompt asks for text to be rewritten in the given style.
func BuildPolishPrompt(text string, style core.PolishStyle) Prompt {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("请将以下文本润色为高质量的%s内容，要求：\n", style))
	sb.WriteString("1. 语言流畅自然，符合中文表达习惯\n")
	sb.WriteString("2. 逻辑清晰，结构合理\n")
	sb.WriteString("3. 用词准确，富有表现力\n")
	sb.WriteString("4. 保持原文核心意思不变\n")
	sb.WriteString("5. 提升文本的可读性和吸引力\n\n")
	sb.WriteString(fmt.Sprintf("原始文本：\n%s\n\n", text))
	sb.WriteString("润色后的文本：\n")

	return Prompt{
		System: fmt.Sprintf("你是一位专业的%s编辑，请将用户提供的文本润色为高质量内容。", style),
		User:   sb.String(),
	}
}

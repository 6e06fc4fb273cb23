// Command conform is a thin front end for manually exercising the
// engine: compile a grammar (lark source or JSON Schema) and replay a
// token sequence through it, printing the sample mask size and any
// captures/stop reason at each step.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coregx/conform/api"
	"github.com/coregx/conform/ast"
	"github.com/coregx/conform/decode"
	"github.com/coregx/conform/grammar"
	"github.com/coregx/conform/rxdfa"
	"github.com/coregx/conform/surface/jsonschema"
	"github.com/coregx/conform/surface/lark"
	"github.com/coregx/conform/vocab"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "conform",
		Short: "conform compiles grammars and replays token sequences against them",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "enable debug-level logging")
	root.AddCommand(newCompileCmd(&verbose))
	root.AddCommand(newReplayCmd(&verbose))
	return root
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func newCompileCmd(verbose *bool) *cobra.Command {
	var grammarFile string
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "compile a grammar request and report symbol/lexeme counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			top, err := loadTopLevelGrammar(grammarFile)
			if err != nil {
				return err
			}
			trees, names, maxTokens, err := buildTrees(top)
			if err != nil {
				return err
			}
			lim := grammar.DefaultLimits()
			lim.Logger = newLogger(*verbose)
			cfg := rxdfa.DefaultConfig()
			set, err := grammar.CompileSet(trees, names, lim, cfg)
			if err != nil {
				return err
			}
			for i, g := range set.Grammars {
				fmt.Printf("grammar %d %q: %d symbols, max_tokens=%d\n", i, names[i], len(g.Symbols), maxTokens[i])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&grammarFile, "grammar", "g", "", "path to a TopLevelGrammar JSON file (required)")
	cmd.MarkFlagRequired("grammar")
	return cmd
}

func newReplayCmd(verbose *bool) *cobra.Command {
	var grammarFile, vocabFile, tokensFile string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "replay a token sequence through a compiled grammar, printing each step",
		RunE: func(cmd *cobra.Command, args []string) error {
			top, err := loadTopLevelGrammar(grammarFile)
			if err != nil {
				return err
			}
			trees, names, maxTokens, err := buildTrees(top)
			if err != nil {
				return err
			}
			env, err := loadVocab(vocabFile)
			if err != nil {
				return err
			}
			tokens, err := loadTokens(tokensFile)
			if err != nil {
				return err
			}
			lim := grammar.DefaultLimits()
			lim.Logger = newLogger(*verbose)
			cfg := rxdfa.DefaultConfig()
			p, err := decode.NewFromTrees(trees, names, maxTokens, env, lim, cfg)
			if err != nil {
				return err
			}
			healedFrom := p.ProcessPrompt(tokens)
			p.Anchor()
			if healedFrom < len(tokens) {
				fmt.Printf("prompt token %d required byte-level healing\n", healedFrom)
			}
			for i, tok := range tokens[healedFrom:] {
				step := p.ComputeMask()
				ok := p.CommitToken(tok)
				res := api.FromDecode(step, nil, 0, p.StopReason())
				bits := -1
				if step.SampleMask != nil {
					bits = step.SampleMask.Count()
				}
				fmt.Printf("step %d: token=%d committed=%v mask_bits=%d temp=%.2f stop=%s\n",
					i, tok, ok, bits, res.Temperature, res.Splice.Stop)
				if p.IsStopped() {
					break
				}
			}
			for _, c := range p.Captures() {
				fmt.Printf("capture %s = %q\n", c.Name, c.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&grammarFile, "grammar", "g", "", "path to a TopLevelGrammar JSON file (required)")
	cmd.Flags().StringVarP(&vocabFile, "vocab", "v", "", "path to a vocabulary JSON file (required)")
	cmd.Flags().StringVarP(&tokensFile, "tokens", "t", "", "path to a JSON array of token ids (required)")
	cmd.MarkFlagRequired("grammar")
	cmd.MarkFlagRequired("vocab")
	cmd.MarkFlagRequired("tokens")
	return cmd
}

func loadTopLevelGrammar(path string) (api.TopLevelGrammar, error) {
	var top api.TopLevelGrammar
	data, err := os.ReadFile(path)
	if err != nil {
		return top, fmt.Errorf("reading grammar file: %w", err)
	}
	if err := json.Unmarshal(data, &top); err != nil {
		return top, fmt.Errorf("parsing grammar file: %w", err)
	}
	if err := top.Validate(); err != nil {
		return top, err
	}
	return top, nil
}

// buildTrees translates every entry in a TopLevelGrammar request (lark
// source or inline JSON Schema) into an ast.Tree, the shape
// grammar.CompileSet consumes.
func buildTrees(top api.TopLevelGrammar) ([]*ast.Tree, []string, []int, error) {
	trees := make([]*ast.Tree, len(top.Grammars))
	names := make([]string, len(top.Grammars))
	maxTokens := make([]int, len(top.Grammars))
	for i, e := range top.Grammars {
		var (
			tree *ast.Tree
			err  error
		)
		if e.LarkGrammar != "" {
			tree, err = lark.Parse(e.LarkGrammar)
		} else {
			var schema any
			if jerr := json.Unmarshal(e.JSONSchema, &schema); jerr != nil {
				return nil, nil, nil, fmt.Errorf("grammar %d: invalid json_schema: %w", i, jerr)
			}
			tree, err = jsonschema.Translate(schema)
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("grammar %d: %w", i, err)
		}
		trees[i] = tree
		names[i] = e.Name
		maxTokens[i] = e.MaxTokens
	}
	// The request-wide budget is enforced through the root grammar's
	// MaxTokens, the one decode.Parser.CommitToken checks.
	if top.MaxTokens > 0 && len(maxTokens) > 0 && (maxTokens[0] == 0 || top.MaxTokens < maxTokens[0]) {
		maxTokens[0] = top.MaxTokens
	}
	return trees, names, maxTokens, nil
}

// vocabFileShape is a JSON object holding the raw token strings (one per
// token id, no base64), the eos id and an optional map from special-token
// name to id, good enough for manual replay; a real deployment wires in a
// vocab.TokEnv built from its own tokenizer.
type vocabFileShape struct {
	Tokens   []string         `json:"tokens"`
	EOS      vocab.TokenID    `json:"eos"`
	Specials map[string]int32 `json:"specials,omitempty"`
}

func loadVocab(path string) (vocab.TokEnv, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocab file: %w", err)
	}
	var v vocabFileShape
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing vocab file: %w", err)
	}
	tokens := make([][]byte, len(v.Tokens))
	for i, s := range v.Tokens {
		tokens[i] = []byte(s)
	}
	env := vocab.NewMemTokEnv(tokens, v.EOS)
	if len(v.Specials) > 0 {
		specials := make(map[string]vocab.TokenID, len(v.Specials))
		for k, id := range v.Specials {
			specials[k] = vocab.TokenID(id)
		}
		env.WithSpecials(specials)
	}
	return env, nil
}

func loadTokens(path string) ([]vocab.TokenID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tokens file: %w", err)
	}
	var raw []int32
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing tokens file: %w", err)
	}
	out := make([]vocab.TokenID, len(raw))
	for i, v := range raw {
		out[i] = vocab.TokenID(v)
	}
	return out, nil
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// tuningFile は tuning.yaml の構造
// RAGConfig のうちYAMLタグを持つフィールドのみ上書き対象
type tuningFile struct {
	RAG RAGConfig `yaml:"rag"`
}

// loadTuningFile はYAMLファイルからRAGチューニング値を読み込んで上書きします
// ゼロ値のフィールドは上書きしない（部分指定を許可）
func loadTuningFile(path string, rag *RAGConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	// 現在値を初期値としてデコードすることで、未指定フィールドを保持する
	tf := tuningFile{RAG: *rag}
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := validateRAG(&tf.RAG); err != nil {
		return err
	}

	*rag = tf.RAG
	return nil
}

// validateRAG はチューニング値の整合性を検証します
func validateRAG(rag *RAGConfig) error {
	if rag.ChunkMaxTokens <= 0 {
		return fmt.Errorf("chunkMaxTokens must be positive, got %d", rag.ChunkMaxTokens)
	}
	if rag.ChunkOverlapTokens < 0 || rag.ChunkOverlapTokens >= rag.ChunkMaxTokens {
		return fmt.Errorf("chunkOverlapTokens must satisfy 0 <= overlap < maxTokens, got %d", rag.ChunkOverlapTokens)
	}
	if rag.SimilarityFloor < 0 || rag.SimilarityFloor > 1 {
		return fmt.Errorf("similarityFloor must be in [0,1], got %f", rag.SimilarityFloor)
	}
	if rag.MaxContextTokens <= 0 {
		return fmt.Errorf("maxContextTokens must be positive, got %d", rag.MaxContextTokens)
	}
	return nil
}

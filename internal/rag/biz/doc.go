// Package biz 提供检索服务的业务逻辑层。
//
// 该包将业务逻辑拆分为以下组件：
//   - Builder: 文档切分与分块记录构建（分块 ID 为 {document_id}_chunk_{i}）
//   - Indexer: 批量向量化与写入，批次由工作池并发处理
//   - Reassembler: 按父文档分组检索命中，补齐缺失分块并合并排序
//   - Retriever: 查询归一化、向量化与重组检索
//   - Guard: 基于规则的越狱检测、相关性判断与实体识别
//   - Generator: 构建孟加拉语提示词并生成回答
//   - Service: 组合以上组件，提供统一的服务接口
package biz

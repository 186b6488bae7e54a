// Package store 提供 core.Store 的三种实现。
//
// 核心思想：
//   - 接口定义在领域层（core.Store），此包只负责落地
//   - MemoryStore：进程内缓存，带 TTL 与后台清理，适合测试与单机运行
//   - RedisStore：跨进程共享缓存，嵌入向量可在多次训练之间复用
//   - FileStore：目录级持久化，分区嵌入矩阵落盘后离线可复现
//
// 选型建议：
//   - 单元测试、示例程序用 MemoryStore
//   - 多副本服务共享嵌入缓存用 RedisStore
//   - 训练管线的分区缓存（embeddings_<partition>.json）用 FileStore
package store

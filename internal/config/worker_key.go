package config

type WorkerKeyStruct struct {
	ExamTakenQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ExamTakenQueue: "mark_exam_taken_queue",
}
